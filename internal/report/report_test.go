package report

import (
	"strings"
	"testing"
	"time"

	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/store"
)

func addCPUSamples(st *store.Store, now time.Time, values ...float64) {
	for i, v := range values {
		st.AppendSample(models.MetricSample{
			Timestamp: now.Add(time.Duration(i-len(values)) * time.Minute),
			Category:  models.CategoryCPU,
			Value:     &models.CPUSample{UsagePercent: v},
		})
	}
}

func TestHealthReportAverages(t *testing.T) {
	st := store.New()
	now := time.Now()
	addCPUSamples(st, now, 20, 40, 60)
	st.AppendSample(models.MetricSample{
		Timestamp: now.Add(-time.Minute),
		Category:  models.CategoryMemory,
		Value:     &models.MemorySample{UsagePercent: 50},
	})

	report := New(st, 5).HealthReport()

	if report.Averages.CPU == nil || *report.Averages.CPU != 40 {
		t.Errorf("CPU 平均值 = %v, want 40", report.Averages.CPU)
	}
	if report.Averages.Memory == nil || *report.Averages.Memory != 50 {
		t.Errorf("内存平均值 = %v, want 50", report.Averages.Memory)
	}
	// 无磁盘样本时省略
	if report.Averages.Disk != nil {
		t.Errorf("无样本时磁盘平均值应该为 nil，实际 %v", *report.Averages.Disk)
	}
}

func TestHealthReportEndpointAvailability(t *testing.T) {
	st := store.New()
	now := time.Now()

	// 8 条正常 + 2 条 4xx：可用率 80%
	for i := 0; i < 8; i++ {
		st.AppendEndpointResult(models.EndpointResult{
			Endpoint: "api", Timestamp: now.Add(-time.Minute), StatusCode: 200, Elapsed: 100 * time.Millisecond,
		})
	}
	for i := 0; i < 2; i++ {
		st.AppendEndpointResult(models.EndpointResult{
			Endpoint: "api", Timestamp: now.Add(-time.Minute), StatusCode: 404, Elapsed: 100 * time.Millisecond,
		})
	}

	report := New(st, 5).HealthReport()

	summary, ok := report.Endpoints["api"]
	if !ok {
		t.Fatal("报告里应该包含端点 api")
	}
	if summary.Availability != 80 {
		t.Errorf("可用率 = %v, want 80", summary.Availability)
	}
	if summary.SampleCount != 10 {
		t.Errorf("记录数 = %d, want 10", summary.SampleCount)
	}
	if summary.AvgResponseMs != 100 {
		t.Errorf("平均响应 = %dms, want 100", summary.AvgResponseMs)
	}

	// 80% < 100-5，应该生成端点建议
	if !hasRecommendation(report.Recommendations, "api") {
		t.Errorf("可用率低于容忍水平应该生成建议: %v", report.Recommendations)
	}
}

func TestHealthReportNoEndpoints(t *testing.T) {
	report := New(store.New(), 5).HealthReport()
	if report.Endpoints != nil {
		t.Errorf("无端点记录时应该省略端点统计: %v", report.Endpoints)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("空数据不应该有建议: %v", report.Recommendations)
	}
}

func TestHealthReportAlertSummary(t *testing.T) {
	st := store.New()
	now := time.Now()
	st.AddAlert(&models.Alert{ID: "a", Severity: models.SeverityCritical, CreatedAt: now.Add(-10 * time.Minute)})
	st.AddAlert(&models.Alert{ID: "b", Severity: models.SeverityWarning, CreatedAt: now.Add(-10 * time.Minute), Acknowledged: true})
	st.AddAlert(&models.Alert{ID: "c", Severity: models.SeverityWarning, CreatedAt: now.Add(-2 * time.Hour)})

	report := New(st, 5).HealthReport()

	if report.Alerts.Total != 3 || report.Alerts.LastHour != 2 || report.Alerts.Critical != 1 || report.Alerts.Unacknowledged != 2 {
		t.Errorf("告警统计不符合预期: %+v", report.Alerts)
	}
}

func TestHealthReportRecoverySummary(t *testing.T) {
	st := store.New()
	now := time.Now()
	st.AddRecovery(models.RecoveryRecord{Timestamp: now.Add(-10 * time.Minute), Success: true})
	st.AddRecovery(models.RecoveryRecord{Timestamp: now.Add(-2 * time.Hour), Success: false})

	report := New(st, 5).HealthReport()

	if report.Recoveries.Total != 2 || report.Recoveries.LastHour != 1 || report.Recoveries.Successful != 1 {
		t.Errorf("恢复统计不符合预期: %+v", report.Recoveries)
	}
}

func TestRecommendations(t *testing.T) {
	t.Run("CPU 接近阈值", func(t *testing.T) {
		st := store.New()
		addCPUSamples(st, time.Now(), 72, 74, 76)

		report := New(st, 5).HealthReport()
		if !hasRecommendation(report.Recommendations, "CPU") {
			t.Errorf("CPU 均值超过建议阈值应该生成建议: %v", report.Recommendations)
		}
	})

	t.Run("CPU 低于建议阈值", func(t *testing.T) {
		st := store.New()
		addCPUSamples(st, time.Now(), 30, 40, 50)

		report := New(st, 5).HealthReport()
		if hasRecommendation(report.Recommendations, "CPU") {
			t.Errorf("CPU 均值正常不应该生成建议: %v", report.Recommendations)
		}
	})

	t.Run("告警风暴", func(t *testing.T) {
		st := store.New()
		now := time.Now()
		for i := 0; i < 6; i++ {
			st.AddAlert(&models.Alert{ID: string(rune('a' + i)), Severity: models.SeverityWarning, CreatedAt: now.Add(-time.Minute)})
		}

		report := New(st, 5).HealthReport()
		if !hasRecommendation(report.Recommendations, "人工介入") {
			t.Errorf("一小时内超过 5 条告警应该建议人工介入: %v", report.Recommendations)
		}
	})
}

func hasRecommendation(recs []string, keyword string) bool {
	for _, r := range recs {
		if strings.Contains(r, keyword) {
			return true
		}
	}
	return false
}
