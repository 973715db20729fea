package alerter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/notify"
	"github.com/dushixiang/lynx/internal/store"
)

// Manager 告警管理器：创建、分级、存储并分发告警
type Manager struct {
	store    *store.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

// New 创建告警管理器，notifier 为 nil 时不发送外部通知
func New(logger *zap.Logger, st *store.Store, notifier notify.Notifier) *Manager {
	return &Manager{
		store:    st,
		notifier: notifier,
		logger:   logger,
	}
}

// Create 创建一条告警：级别由类型静态决定，追加到告警日志并异步通知。
// 通知投递失败不影响调用方。
func (m *Manager) Create(alertType models.AlertType, data map[string]any) models.Alert {
	alert := &models.Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Severity:  models.SeverityFor(alertType),
		Data:      data,
		CreatedAt: time.Now(),
	}
	m.store.AddAlert(alert)

	m.logger.Warn("触发告警",
		zap.String("alertId", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.Any("data", data),
	)

	if m.notifier != nil {
		go m.sendNotification(*alert)
	}

	return *alert
}

// Acknowledge 确认告警，幂等
func (m *Manager) Acknowledge(alertID string) bool {
	ok := m.store.Acknowledge(alertID)
	if ok {
		m.logger.Info("告警已确认", zap.String("alertId", alertID))
	}
	return ok
}

// sendNotification 发送告警通知(带 panic 恢复)
func (m *Manager) sendNotification(alert models.Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("发送告警通知时发生panic",
				zap.Any("panic", r),
				zap.String("alertId", alert.ID),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.notifier.Notify(ctx, alert); err != nil {
		m.logger.Error("发送告警通知失败",
			zap.String("alertId", alert.ID),
			zap.Error(err),
		)
	}
}
