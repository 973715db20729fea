package checker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/probe"
)

// RestartFunc 服务不健康时的恢复回调
type RestartFunc func(ctx context.Context, svc config.Service)

// ServiceChecker 服务健康检查器。每个服务维护健康/不健康两个状态，
// 告警是边沿触发的：只在健康转为不健康的那个周期产生，持续不健康不重复告警，
// 恢复健康也不产生通知。
type ServiceChecker struct {
	services []config.Service
	alerter  *alerter.Manager
	logger   *zap.Logger
	probe    probe.Func
	restart  RestartFunc

	mu        sync.Mutex
	unhealthy map[string]bool
}

// New 创建服务健康检查器，restart 为 nil 时只告警不恢复
func New(logger *zap.Logger, services []config.Service, am *alerter.Manager, probeFn probe.Func, restart RestartFunc) *ServiceChecker {
	return &ServiceChecker{
		services:  services,
		alerter:   am,
		logger:    logger,
		probe:     probeFn,
		restart:   restart,
		unhealthy: make(map[string]bool),
	}
}

// CheckAll 探测全部已配置的服务
func (c *ServiceChecker) CheckAll(ctx context.Context) {
	for _, svc := range c.services {
		c.check(ctx, svc)
	}
}

// check 探测单个服务并处理状态迁移
func (c *ServiceChecker) check(ctx context.Context, svc config.Service) {
	err := c.probe(ctx, svc)
	healthy := err == nil

	c.mu.Lock()
	wasUnhealthy := c.unhealthy[svc.Name]
	if healthy {
		delete(c.unhealthy, svc.Name)
	} else {
		c.unhealthy[svc.Name] = true
	}
	c.mu.Unlock()

	if !healthy && !wasUnhealthy {
		c.logger.Warn("服务探测失败，状态转为不健康",
			zap.String("service", svc.Name),
			zap.Error(err),
		)
		c.alerter.Create(models.AlertServiceDown, map[string]any{
			"service": svc.Name,
			"error":   err.Error(),
		})
		if c.restart != nil {
			c.restart(ctx, svc)
		}
		return
	}

	if healthy && wasUnhealthy {
		// 只记日志，不产生恢复通知
		c.logger.Info("服务恢复健康", zap.String("service", svc.Name))
	}
}
