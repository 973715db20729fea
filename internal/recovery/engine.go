package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/command"
	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/probe"
	"github.com/dushixiang/lynx/internal/store"
)

const (
	// VerifyDelay 服务重启后到复探的等待时间
	VerifyDelay = 10 * time.Second
	// ProactiveAlertAge 主动恢复只处理超过该年龄的未确认 critical 告警
	ProactiveAlertAge = 5 * time.Minute
	// RestartGracePeriod 应用整体重启时停止与启动之间的等待时间
	RestartGracePeriod = 5 * time.Second
)

// Engine 恢复引擎。被动路径由服务检查器在不健康转换时触发，
// 主动路径每个系统检查周期扫描一次陈旧的未确认 critical 告警。
type Engine struct {
	cfg     config.RecoveryConfig
	store   *store.Store
	alerter *alerter.Manager
	logger  *zap.Logger
	runner  command.Runner
	probe   probe.Func
	fs      afero.Fs

	verifyDelay time.Duration
	gracePeriod time.Duration
}

// New 创建恢复引擎
func New(logger *zap.Logger, cfg config.RecoveryConfig, st *store.Store, am *alerter.Manager, runner command.Runner, probeFn probe.Func) *Engine {
	return &Engine{
		cfg:         cfg,
		store:       st,
		alerter:     am,
		logger:      logger,
		runner:      runner,
		probe:       probeFn,
		fs:          afero.NewOsFs(),
		verifyDelay: VerifyDelay,
		gracePeriod: RestartGracePeriod,
	}
}

// RestartService 执行服务重启命令，等待验证延迟后复探。
// 复探仍不健康则升级为 SERVICE_RESTART_FAILED 告警。
// 无论成败都追加一条恢复记录。
func (e *Engine) RestartService(ctx context.Context, svc config.Service) {
	e.logger.Info("尝试重启服务",
		zap.String("service", svc.Name),
		zap.String("command", svc.RestartCommand),
	)

	output, restartErr := e.runner.Run(ctx, svc.RestartCommand)

	e.sleep(ctx, e.verifyDelay)
	probeErr := e.probe(ctx, svc)

	var detail string
	switch {
	case restartErr != nil && probeErr != nil:
		detail = fmt.Sprintf("重启命令失败: %v; 复探仍不健康: %v", restartErr, probeErr)
	case probeErr != nil:
		detail = fmt.Sprintf("重启命令已执行，复探仍不健康: %v", probeErr)
	case restartErr != nil:
		detail = fmt.Sprintf("重启命令失败(%v)，但服务已恢复健康", restartErr)
	default:
		detail = strings.TrimSpace(output)
		if detail == "" {
			detail = "重启成功，复探健康"
		}
	}

	e.store.AddRecovery(models.RecoveryRecord{
		Action:    models.ActionServiceRestart,
		Target:    svc.Name,
		Timestamp: time.Now(),
		Success:   restartErr == nil && probeErr == nil,
		Detail:    detail,
	})

	if probeErr != nil {
		e.alerter.Create(models.AlertServiceRestartFailed, map[string]any{
			"service": svc.Name,
			"error":   probeErr.Error(),
		})
		return
	}

	e.logger.Info("服务重启成功", zap.String("service", svc.Name))
}

// ProactiveSweep 主动恢复：挑选超过年龄阈值的未确认 critical 告警并按类型分发。
// 同一类型每个周期最多执行一次动作；分发过的告警无论动作成败都会被确认，
// 以此限制对同一条告警的重复尝试。
func (e *Engine) ProactiveSweep(ctx context.Context, now time.Time) {
	alerts := e.store.UnacknowledgedCritical(now.Add(-ProactiveAlertAge))
	if len(alerts) == 0 {
		return
	}

	dispatched := make(map[models.AlertType]bool)
	for _, alert := range alerts {
		switch alert.Type {
		case models.AlertHighDisk:
			if !dispatched[alert.Type] {
				e.CleanupDisk(ctx)
			}
		case models.AlertHighMemory:
			if !dispatched[alert.Type] {
				e.CleanupMemory(ctx)
			}
		case models.AlertEndpointDown:
			if !dispatched[alert.Type] {
				e.RestartApplication(ctx)
			}
		case models.AlertServiceDown:
			// 已由服务检查的被动路径处理，这里不再动作
		default:
			// 其余 critical 类型没有对应的自动动作
		}
		dispatched[alert.Type] = true

		e.alerter.Acknowledge(alert.ID)
	}
}

// RestartApplication 最重的恢复手段：停止全部托管进程，等待宽限期后重新启动。
// 保留给服务级检查未能发现的端点级故障。
func (e *Engine) RestartApplication(ctx context.Context) {
	if e.cfg.AppStopCommand == "" || e.cfg.AppStartCommand == "" {
		e.store.AddRecovery(models.RecoveryRecord{
			Action:    models.ActionApplicationRestart,
			Timestamp: time.Now(),
			Success:   false,
			Detail:    "未配置应用启停命令",
		})
		return
	}

	e.logger.Warn("执行应用整体重启")

	_, stopErr := e.runner.Run(ctx, e.cfg.AppStopCommand)
	e.sleep(ctx, e.gracePeriod)
	_, startErr := e.runner.Run(ctx, e.cfg.AppStartCommand)

	var detail string
	switch {
	case stopErr != nil && startErr != nil:
		detail = fmt.Sprintf("停止失败: %v; 启动失败: %v", stopErr, startErr)
	case stopErr != nil:
		detail = fmt.Sprintf("停止失败: %v; 启动成功", stopErr)
	case startErr != nil:
		detail = fmt.Sprintf("停止成功; 启动失败: %v", startErr)
	default:
		detail = "应用已重启"
	}

	e.store.AddRecovery(models.RecoveryRecord{
		Action:    models.ActionApplicationRestart,
		Timestamp: time.Now(),
		Success:   stopErr == nil && startErr == nil,
		Detail:    detail,
	})
}

// sleep 可被 ctx 打断的等待
func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
