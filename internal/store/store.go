package store

import (
	"sync"
	"time"

	"github.com/dushixiang/lynx/internal/models"
)

// 各类数据的保留窗口
const (
	SampleRetention   = time.Hour          // 指标样本保留 1 小时
	AlertRetention    = 24 * time.Hour     // 告警保留 24 小时
	RecoveryRetention = 7 * 24 * time.Hour // 恢复记录保留 7 天
)

// Store 进程内共享状态。四个周期任务都会读写这里，
// 所有访问都由同一把锁串行化，告警只有 acknowledged 标志可变。
type Store struct {
	mu              sync.RWMutex
	samples         map[models.MetricCategory][]models.MetricSample
	alerts          []*models.Alert
	recoveries      []models.RecoveryRecord
	endpointResults map[string][]models.EndpointResult
	endpointErrors  map[string]models.EndpointError
}

// New 创建空的状态存储
func New() *Store {
	return &Store{
		samples:         make(map[models.MetricCategory][]models.MetricSample),
		endpointResults: make(map[string][]models.EndpointResult),
		endpointErrors:  make(map[string]models.EndpointError),
	}
}

// AppendSample 追加一条指标样本
func (s *Store) AppendSample(sample models.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.Category] = append(s.samples[sample.Category], sample)
}

// SamplesSince 返回某类别中时间不早于 since 的样本
func (s *Store) SamplesSince(category models.MetricCategory, since time.Time) []models.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MetricSample
	for _, sample := range s.samples[category] {
		if !sample.Timestamp.Before(since) {
			out = append(out, sample)
		}
	}
	return out
}

// LatestSamples 返回某类别最近的 n 条样本（样本按时间顺序追加）
func (s *Store) LatestSamples(category models.MetricCategory, n int) []models.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.samples[category]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]models.MetricSample, len(all))
	copy(out, all)
	return out
}

// AddAlert 追加一条告警
func (s *Store) AddAlert(alert *models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
}

// Alerts 返回全部告警的副本
func (s *Store) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		out = append(out, *alert)
	}
	return out
}

// Acknowledge 设置告警的确认标志，幂等；告警不存在时返回 false
func (s *Store) Acknowledge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alert := range s.alerts {
		if alert.ID == id {
			alert.Acknowledged = true
			return true
		}
	}
	return false
}

// UnacknowledgedCritical 返回创建时间早于 before 的未确认 critical 告警副本
func (s *Store) UnacknowledgedCritical(before time.Time) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, alert := range s.alerts {
		if alert.Severity == models.SeverityCritical && !alert.Acknowledged && alert.CreatedAt.Before(before) {
			out = append(out, *alert)
		}
	}
	return out
}

// AddRecovery 追加一条恢复动作记录
func (s *Store) AddRecovery(record models.RecoveryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveries = append(s.recoveries, record)
}

// Recoveries 返回全部恢复记录的副本
func (s *Store) Recoveries() []models.RecoveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RecoveryRecord, len(s.recoveries))
	copy(out, s.recoveries)
	return out
}

// AppendEndpointResult 追加一条端点响应记录
func (s *Store) AppendEndpointResult(result models.EndpointResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpointResults[result.Endpoint] = append(s.endpointResults[result.Endpoint], result)
}

// EndpointResultsSince 返回各端点中时间不早于 since 的响应记录
func (s *Store) EndpointResultsSince(since time.Time) map[string][]models.EndpointResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.EndpointResult, len(s.endpointResults))
	for name, results := range s.endpointResults {
		for _, r := range results {
			if !r.Timestamp.Before(since) {
				out[name] = append(out[name], r)
			}
		}
	}
	return out
}

// SetEndpointError 记录端点最近一次探测失败
func (s *Store) SetEndpointError(e models.EndpointError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpointErrors[e.Endpoint] = e
}

// EndpointErrors 返回各端点最近一次探测失败的副本
func (s *Store) EndpointErrors() map[string]models.EndpointError {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.EndpointError, len(s.endpointErrors))
	for name, e := range s.endpointErrors {
		out[name] = e
	}
	return out
}

// PruneResult 一次清理删除的条数
type PruneResult struct {
	Samples         int `json:"samples"`
	Alerts          int `json:"alerts"`
	Recoveries      int `json:"recoveries"`
	EndpointResults int `json:"endpointResults"`
}

// Prune 删除超过保留窗口的数据，窗口内的数据保持不变
func (s *Store) Prune(now time.Time) PruneResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result PruneResult

	sampleCutoff := now.Add(-SampleRetention)
	for category, samples := range s.samples {
		kept := samples[:0]
		for _, sample := range samples {
			if !sample.Timestamp.Before(sampleCutoff) {
				kept = append(kept, sample)
			} else {
				result.Samples++
			}
		}
		s.samples[category] = kept
	}

	alertCutoff := now.Add(-AlertRetention)
	keptAlerts := s.alerts[:0]
	for _, alert := range s.alerts {
		if !alert.CreatedAt.Before(alertCutoff) {
			keptAlerts = append(keptAlerts, alert)
		} else {
			result.Alerts++
		}
	}
	s.alerts = keptAlerts

	recoveryCutoff := now.Add(-RecoveryRetention)
	keptRecoveries := s.recoveries[:0]
	for _, record := range s.recoveries {
		if !record.Timestamp.Before(recoveryCutoff) {
			keptRecoveries = append(keptRecoveries, record)
		} else {
			result.Recoveries++
		}
	}
	s.recoveries = keptRecoveries

	// 端点历史只服务于 1 小时窗口的可用率计算，与样本共用窗口
	for name, results := range s.endpointResults {
		kept := results[:0]
		for _, r := range results {
			if !r.Timestamp.Before(sampleCutoff) {
				kept = append(kept, r)
			} else {
				result.EndpointResults++
			}
		}
		s.endpointResults[name] = kept
	}

	return result
}
