package checker

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/store"
)

func countAlerts(st *store.Store, alertType models.AlertType) int {
	count := 0
	for _, alert := range st.Alerts() {
		if alert.Type == alertType {
			count++
		}
	}
	return count
}

func TestServiceCheckerEdgeTriggered(t *testing.T) {
	st := store.New()
	am := alerter.New(zap.NewNop(), st, nil)

	svc := config.Service{
		Name:           "redis",
		Probe:          config.Probe{Type: config.ProbeTCP, Host: "127.0.0.1", Port: 6379},
		RestartCommand: "systemctl restart redis",
	}

	probeErr := error(nil)
	restartCalls := 0

	c := New(zap.NewNop(), []config.Service{svc}, am,
		func(ctx context.Context, svc config.Service) error { return probeErr },
		func(ctx context.Context, svc config.Service) { restartCalls++ },
	)
	ctx := context.Background()

	// 健康周期：无告警
	c.CheckAll(ctx)
	if got := countAlerts(st, models.AlertServiceDown); got != 0 {
		t.Fatalf("健康时不应该产生告警，实际 %d 条", got)
	}

	// 健康→不健康：恰好一条告警，触发一次重启
	probeErr = errors.New("connection refused")
	c.CheckAll(ctx)
	if got := countAlerts(st, models.AlertServiceDown); got != 1 {
		t.Fatalf("不健康转换应该产生 1 条告警，实际 %d 条", got)
	}
	if restartCalls != 1 {
		t.Fatalf("不健康转换应该触发 1 次重启，实际 %d 次", restartCalls)
	}

	// 持续不健康：不重复告警也不重复重启
	c.CheckAll(ctx)
	c.CheckAll(ctx)
	if got := countAlerts(st, models.AlertServiceDown); got != 1 {
		t.Errorf("持续不健康不应该重复告警，实际 %d 条", got)
	}
	if restartCalls != 1 {
		t.Errorf("持续不健康不应该重复重启，实际 %d 次", restartCalls)
	}

	// 恢复健康：不产生任何告警
	probeErr = nil
	c.CheckAll(ctx)
	if got := len(st.Alerts()); got != 1 {
		t.Errorf("恢复健康不应该产生告警，告警总数 = %d", got)
	}

	// 再次不健康：新的转换，再告警一次
	probeErr = errors.New("connection refused")
	c.CheckAll(ctx)
	if got := countAlerts(st, models.AlertServiceDown); got != 2 {
		t.Errorf("新的不健康转换应该再产生 1 条告警，总数 = %d", got)
	}
}

func TestServiceCheckerWithoutRestart(t *testing.T) {
	st := store.New()
	am := alerter.New(zap.NewNop(), st, nil)

	svc := config.Service{
		Name:           "nginx",
		Probe:          config.Probe{Type: config.ProbeCommand, Command: "true"},
		RestartCommand: "systemctl restart nginx",
	}

	// restart 为 nil 时只告警
	c := New(zap.NewNop(), []config.Service{svc}, am,
		func(ctx context.Context, svc config.Service) error { return errors.New("failed") },
		nil,
	)
	c.CheckAll(context.Background())

	if got := countAlerts(st, models.AlertServiceDown); got != 1 {
		t.Errorf("应该产生 1 条告警，实际 %d 条", got)
	}
}

func TestServiceDownAlertSeverity(t *testing.T) {
	st := store.New()
	am := alerter.New(zap.NewNop(), st, nil)

	svc := config.Service{Name: "mysql", Probe: config.Probe{Type: config.ProbeTCP, Port: 3306}, RestartCommand: "x"}
	c := New(zap.NewNop(), []config.Service{svc}, am,
		func(ctx context.Context, svc config.Service) error { return errors.New("down") },
		nil,
	)
	c.CheckAll(context.Background())

	alerts := st.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("告警数 = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Errorf("SERVICE_DOWN 级别 = %s, want critical", alerts[0].Severity)
	}
	if alerts[0].Data["service"] != "mysql" {
		t.Errorf("告警数据缺少服务名: %+v", alerts[0].Data)
	}
}
