package report

import (
	"fmt"
	"time"

	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/store"
)

// 建议阈值，低于告警阈值，用于提前给出扩容/排查建议
const (
	adviseCPU    = 70.0
	adviseMemory = 75.0
	adviseDisk   = 85.0

	// adviseSampleCount 建议计算使用最近的原始样本数
	adviseSampleCount = 10
	// alertStormLimit 一小时内超过该数量的告警视为不稳定
	alertStormLimit = 5
)

// Averages 滚动窗口内的平均使用率，缺少样本的项为 nil
type Averages struct {
	CPU    *float64 `json:"cpu,omitempty"`
	Memory *float64 `json:"memory,omitempty"`
	Disk   *float64 `json:"disk,omitempty"`
}

// EndpointSummary 单个端点的窗口统计
type EndpointSummary struct {
	Availability  float64 `json:"availability"`  // 可用率(%)
	SampleCount   int     `json:"sampleCount"`   // 窗口内响应记录数
	AvgResponseMs int64   `json:"avgResponseMs"` // 平均响应耗时(毫秒)
}

// AlertSummary 告警统计
type AlertSummary struct {
	Total          int `json:"total"`
	LastHour       int `json:"lastHour"`
	Critical       int `json:"critical"`
	Unacknowledged int `json:"unacknowledged"`
}

// RecoverySummary 恢复动作统计
type RecoverySummary struct {
	Total      int `json:"total"`
	LastHour   int `json:"lastHour"`
	Successful int `json:"successful"`
}

// HealthReport 按需生成的健康报告快照，不落盘
type HealthReport struct {
	GeneratedAt     time.Time                  `json:"generatedAt"`
	Averages        Averages                   `json:"averages"`
	Endpoints       map[string]EndpointSummary `json:"endpoints,omitempty"`
	Alerts          AlertSummary               `json:"alerts"`
	Recoveries      RecoverySummary            `json:"recoveries"`
	Recommendations []string                   `json:"recommendations,omitempty"`
}

// Generator 健康报告生成器，只读不修改共享状态
type Generator struct {
	store     *store.Store
	errorRate float64 // 端点容忍错误率(%)
}

// New 创建报告生成器
func New(st *store.Store, errorRate float64) *Generator {
	return &Generator{
		store:     st,
		errorRate: errorRate,
	}
}

// HealthReport 生成当前健康报告
func (g *Generator) HealthReport() *HealthReport {
	now := time.Now()
	windowStart := now.Add(-time.Hour)

	report := &HealthReport{
		GeneratedAt: now,
		Averages: Averages{
			CPU:    g.windowAverage(models.CategoryCPU, windowStart),
			Memory: g.windowAverage(models.CategoryMemory, windowStart),
			Disk:   g.windowAverage(models.CategoryDisk, windowStart),
		},
	}

	report.Endpoints = g.endpointSummaries(windowStart)
	report.Alerts = g.alertSummary(windowStart)
	report.Recoveries = g.recoverySummary(windowStart)
	report.Recommendations = g.recommendations(report)

	return report
}

// windowAverage 计算窗口内某类指标使用率的算术平均，窗口为空返回 nil
func (g *Generator) windowAverage(category models.MetricCategory, since time.Time) *float64 {
	samples := g.store.SamplesSince(category, since)

	var sum float64
	count := 0
	for _, sample := range samples {
		if usage, ok := usageOf(sample); ok {
			sum += usage
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}

// endpointSummaries 计算各端点的可用率与平均响应耗时。
// 可用率 = 状态码低于 400 的响应数 / 窗口内全部响应数 × 100，无记录的端点不出现在结果里。
func (g *Generator) endpointSummaries(since time.Time) map[string]EndpointSummary {
	results := g.store.EndpointResultsSince(since)
	if len(results) == 0 {
		return nil
	}

	summaries := make(map[string]EndpointSummary, len(results))
	for name, records := range results {
		if len(records) == 0 {
			continue
		}
		ok := 0
		var totalElapsed time.Duration
		for _, r := range records {
			if r.StatusCode < 400 {
				ok++
			}
			totalElapsed += r.Elapsed
		}
		summaries[name] = EndpointSummary{
			Availability:  float64(ok) / float64(len(records)) * 100,
			SampleCount:   len(records),
			AvgResponseMs: (totalElapsed / time.Duration(len(records))).Milliseconds(),
		}
	}
	return summaries
}

func (g *Generator) alertSummary(since time.Time) AlertSummary {
	var summary AlertSummary
	for _, alert := range g.store.Alerts() {
		summary.Total++
		if !alert.CreatedAt.Before(since) {
			summary.LastHour++
		}
		if alert.Severity == models.SeverityCritical {
			summary.Critical++
		}
		if !alert.Acknowledged {
			summary.Unacknowledged++
		}
	}
	return summary
}

func (g *Generator) recoverySummary(since time.Time) RecoverySummary {
	var summary RecoverySummary
	for _, record := range g.store.Recoveries() {
		summary.Total++
		if !record.Timestamp.Before(since) {
			summary.LastHour++
		}
		if record.Success {
			summary.Successful++
		}
	}
	return summary
}

// recommendations 基于最近 10 条原始样本的均值与建议阈值给出文字建议
func (g *Generator) recommendations(report *HealthReport) []string {
	var recs []string

	if avg, ok := g.recentAverage(models.CategoryCPU); ok && avg > adviseCPU {
		recs = append(recs, fmt.Sprintf("CPU 近期平均使用率 %.1f%%，建议排查高负载进程或扩容", avg))
	}
	if avg, ok := g.recentAverage(models.CategoryMemory); ok && avg > adviseMemory {
		recs = append(recs, fmt.Sprintf("内存近期平均使用率 %.1f%%，建议检查内存泄漏或增加内存", avg))
	}
	if avg, ok := g.recentAverage(models.CategoryDisk); ok && avg > adviseDisk {
		recs = append(recs, fmt.Sprintf("磁盘近期平均使用率 %.1f%%，建议清理日志与备份或扩容磁盘", avg))
	}

	if report.Alerts.LastHour > alertStormLimit {
		recs = append(recs, fmt.Sprintf("最近一小时产生 %d 条告警，系统不稳定，建议人工介入排查", report.Alerts.LastHour))
	}

	for name, summary := range report.Endpoints {
		if summary.Availability < 100-g.errorRate {
			recs = append(recs, fmt.Sprintf("端点 %s 可用率 %.1f%%，低于容忍水平，建议检查上游服务", name, summary.Availability))
		}
	}

	return recs
}

// recentAverage 最近 adviseSampleCount 条原始样本的使用率均值
func (g *Generator) recentAverage(category models.MetricCategory) (float64, bool) {
	samples := g.store.LatestSamples(category, adviseSampleCount)

	var sum float64
	count := 0
	for _, sample := range samples {
		if usage, ok := usageOf(sample); ok {
			sum += usage
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// usageOf 从样本中取出使用率
func usageOf(sample models.MetricSample) (float64, bool) {
	switch v := sample.Value.(type) {
	case *models.CPUSample:
		return v.UsagePercent, true
	case *models.MemorySample:
		return v.UsagePercent, true
	case *models.DiskSample:
		return v.UsagePercent, true
	default:
		return 0, false
	}
}
