package retention

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/store"
)

// Sweeper 定期清理超过保留窗口的样本、告警与恢复记录。
// 同一时刻只允许一次清理在执行。
type Sweeper struct {
	store   *store.Store
	logger  *zap.Logger
	running atomic.Bool
}

// New 创建清理器
func New(logger *zap.Logger, st *store.Store) *Sweeper {
	return &Sweeper{
		store:  st,
		logger: logger,
	}
}

// Sweep 执行一次清理；上一次清理尚未结束时直接跳过
func (s *Sweeper) Sweep(now time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("上一次数据清理尚未完成，跳过本次")
		return
	}
	defer s.running.Store(false)

	result := s.store.Prune(now)
	s.logger.Info("数据清理完成",
		zap.Int("samples", result.Samples),
		zap.Int("alerts", result.Alerts),
		zap.Int("recoveries", result.Recoveries),
		zap.Int("endpointResults", result.EndpointResults),
	)
}
