package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 周期任务调度器。每个任务带单飞保护：
// 上一次执行尚未结束时，到点的新一次触发会被跳过而不是排队，
// 避免慢周期堆积出并发探测。
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New 创建调度器
func New(logger *zap.Logger) *Scheduler {
	cronLogger := &zapCronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(), // 支持秒级调度
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
	}
}

// Register 注册一个固定间隔的周期任务
func (s *Scheduler) Register(name string, intervalSeconds int, job func()) error {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}

	spec := fmt.Sprintf("@every %ds", intervalSeconds)
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("注册周期任务 %s 失败: %w", name, err)
	}

	s.logger.Info("注册周期任务",
		zap.String("task", name),
		zap.Int("interval", intervalSeconds),
	)
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("调度器已启动")
}

// Stop 停止调度器并等待在执行的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("调度器已停止")
}

// zapCronLogger 把 cron 的日志接到 zap 上
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, zap.Any("details", keysAndValues))
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
