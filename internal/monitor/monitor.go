package monitor

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/checker"
	"github.com/dushixiang/lynx/internal/collector"
	"github.com/dushixiang/lynx/internal/command"
	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/handler"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/notify"
	"github.com/dushixiang/lynx/internal/probe"
	"github.com/dushixiang/lynx/internal/recovery"
	"github.com/dushixiang/lynx/internal/report"
	"github.com/dushixiang/lynx/internal/retention"
	"github.com/dushixiang/lynx/internal/scheduler"
	"github.com/dushixiang/lynx/internal/statuslog"
	"github.com/dushixiang/lynx/internal/store"
)

// Monitor 把采集、检查、告警、恢复与清理装配成四个周期任务
type Monitor struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *store.Store
	collector *collector.Collector
	alerter   *alerter.Manager
	engine    *recovery.Engine
	services  *checker.ServiceChecker
	endpoints *checker.EndpointChecker
	sweeper   *retention.Sweeper
	reporter  *report.Generator
	statusLog *statuslog.Logger
	scheduler *scheduler.Scheduler
	server    *handler.Server

	startedAt time.Time
}

// New 装配监控器，配置在此之后不再变化
func New(logger *zap.Logger, cfg *config.Config) *Monitor {
	st := store.New()
	runner := command.NewShellRunner()
	prober := probe.New(runner)
	notifier := notify.FromConfig(logger, cfg.Notify)

	am := alerter.New(logger, st, notifier)
	engine := recovery.New(logger, cfg.Recovery, st, am, runner, prober.Probe)

	// 恢复未启用时服务检查只告警不重启
	var restart checker.RestartFunc
	if cfg.Recovery.Enabled {
		restart = engine.RestartService
	}

	m := &Monitor{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		collector: collector.New(logger, st, cfg.MountPoint),
		alerter:   am,
		engine:    engine,
		services:  checker.New(logger, cfg.Services, am, prober.Probe, restart),
		endpoints: checker.NewEndpoint(logger, cfg.Endpoints, st, am, cfg.Thresholds.ResponseTime),
		sweeper:   retention.New(logger, st),
		reporter:  report.New(st, cfg.Thresholds.ErrorRate),
		statusLog: statuslog.New(cfg.StatusLogDir),
		scheduler: scheduler.New(logger),
	}

	if cfg.Server.Enabled {
		h := handler.New(logger, st, am, m.reporter)
		m.server = handler.NewServer(logger, h)
	}

	return m
}

// Start 注册周期任务并启动调度器，不阻塞
func (m *Monitor) Start(ctx context.Context) error {
	m.startedAt = time.Now()

	if err := m.scheduler.Register("system-check", m.cfg.Intervals.System, func() {
		m.SystemCheck(ctx)
	}); err != nil {
		return err
	}
	if err := m.scheduler.Register("service-check", m.cfg.Intervals.Service, func() {
		m.services.CheckAll(ctx)
	}); err != nil {
		return err
	}
	if err := m.scheduler.Register("endpoint-check", m.cfg.Intervals.Endpoint, func() {
		m.endpoints.CheckAll(ctx)
	}); err != nil {
		return err
	}
	if err := m.scheduler.Register("retention-sweep", m.cfg.Intervals.Retention, func() {
		m.sweeper.Sweep(time.Now())
	}); err != nil {
		return err
	}

	m.scheduler.Start()

	if m.server != nil {
		go func() {
			if err := m.server.Start(m.cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
				m.logger.Error("HTTP 服务异常退出", zap.Error(err))
			}
		}()
	}

	m.logger.Info("监控器已启动",
		zap.Int("services", len(m.cfg.Services)),
		zap.Int("endpoints", len(m.cfg.Endpoints)),
	)
	return nil
}

// Stop 停止调度与 HTTP 服务
func (m *Monitor) Stop() {
	m.scheduler.Stop()

	if m.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.server.Shutdown(ctx); err != nil {
			m.logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
		}
	}

	if err := m.statusLog.Close(); err != nil {
		m.logger.Warn("关闭状态日志失败", zap.Error(err))
	}

	m.logger.Info("监控器已停止")
}

// SystemCheck 系统检查周期：先并行采集全部指标，再做阈值判断，
// 然后执行一轮主动恢复，最后写一行状态日志。
func (m *Monitor) SystemCheck(ctx context.Context) {
	snapshot := m.collector.CollectAll(ctx)

	m.evaluate(snapshot)

	if m.cfg.Recovery.Enabled {
		m.engine.ProactiveSweep(ctx, time.Now())
	}

	m.writeStatus(snapshot)
}

// evaluate 把采样值与阈值比较，越界即产生告警
func (m *Monitor) evaluate(snapshot *collector.Snapshot) {
	thresholds := m.cfg.Thresholds

	if snapshot.CPU != nil && snapshot.CPU.UsagePercent > thresholds.CPU {
		m.alerter.Create(models.AlertHighCPU, map[string]any{
			"usagePercent": snapshot.CPU.UsagePercent,
			"threshold":    thresholds.CPU,
		})
	}
	if snapshot.Memory != nil && snapshot.Memory.UsagePercent > thresholds.Memory {
		m.alerter.Create(models.AlertHighMemory, map[string]any{
			"usagePercent": snapshot.Memory.UsagePercent,
			"threshold":    thresholds.Memory,
		})
	}
	if snapshot.Disk != nil && snapshot.Disk.UsagePercent > thresholds.Disk {
		m.alerter.Create(models.AlertHighDisk, map[string]any{
			"usagePercent": snapshot.Disk.UsagePercent,
			"threshold":    thresholds.Disk,
			"mountPoint":   snapshot.Disk.MountPoint,
		})
	}
}

// writeStatus 写入本周期的状态摘要
func (m *Monitor) writeStatus(snapshot *collector.Snapshot) {
	entry := statuslog.Entry{
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
	}

	for _, alert := range m.store.Alerts() {
		entry.AlertsTotal++
		if !alert.Acknowledged {
			entry.AlertsUnacked++
		}
		if alert.Severity == models.SeverityCritical {
			entry.AlertsCritical++
		}
	}

	if snapshot.CPU != nil {
		entry.CPUPercent = &snapshot.CPU.UsagePercent
	}
	if snapshot.Memory != nil {
		entry.MemoryPercent = &snapshot.Memory.UsagePercent
	}
	if snapshot.Disk != nil {
		entry.DiskPercent = &snapshot.Disk.UsagePercent
	}

	if err := m.statusLog.Append(entry); err != nil {
		m.logger.Warn("写入状态日志失败", zap.Error(err))
	}
}

// Reporter 返回报告生成器，供外部按需生成健康报告
func (m *Monitor) Reporter() *report.Generator {
	return m.reporter
}
