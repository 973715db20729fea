package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/store"
)

// fakeRunner 按命令返回预设结果，并记录执行顺序
type fakeRunner struct {
	errs     map[string]error
	commands []string
}

func (r *fakeRunner) Run(ctx context.Context, cmd string) (string, error) {
	r.commands = append(r.commands, cmd)
	return "", r.errs[cmd]
}

func newTestEngine(cfg config.RecoveryConfig, runner *fakeRunner, probeErr error) (*Engine, *store.Store) {
	st := store.New()
	am := alerter.New(zap.NewNop(), st, nil)
	e := New(zap.NewNop(), cfg, st, am, runner, func(ctx context.Context, svc config.Service) error {
		return probeErr
	})
	e.verifyDelay = 0
	e.gracePeriod = 0
	return e, st
}

func TestRestartServiceSuccess(t *testing.T) {
	runner := &fakeRunner{}
	e, st := newTestEngine(config.RecoveryConfig{}, runner, nil)

	svc := config.Service{Name: "redis", RestartCommand: "systemctl restart redis"}
	e.RestartService(context.Background(), svc)

	records := st.Recoveries()
	if len(records) != 1 {
		t.Fatalf("恢复记录数 = %d, want 1", len(records))
	}
	if !records[0].Success || records[0].Action != models.ActionServiceRestart || records[0].Target != "redis" {
		t.Errorf("恢复记录不符合预期: %+v", records[0])
	}
	if len(st.Alerts()) != 0 {
		t.Errorf("重启成功不应该产生告警，实际 %d 条", len(st.Alerts()))
	}
	if len(runner.commands) != 1 || runner.commands[0] != "systemctl restart redis" {
		t.Errorf("执行的命令不符合预期: %v", runner.commands)
	}
}

func TestRestartServiceEscalation(t *testing.T) {
	runner := &fakeRunner{}
	e, st := newTestEngine(config.RecoveryConfig{}, runner, errors.New("still down"))

	svc := config.Service{Name: "redis", RestartCommand: "systemctl restart redis"}
	e.RestartService(context.Background(), svc)

	records := st.Recoveries()
	if len(records) != 1 || records[0].Success {
		t.Fatalf("复探失败应该记为失败的恢复记录: %+v", records)
	}

	alerts := st.Alerts()
	if len(alerts) != 1 || alerts[0].Type != models.AlertServiceRestartFailed {
		t.Fatalf("复探失败应该升级为 SERVICE_RESTART_FAILED: %+v", alerts)
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Errorf("SERVICE_RESTART_FAILED 级别 = %s, want critical", alerts[0].Severity)
	}
}

func TestRestartServiceCommandFailedButHealthy(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"systemctl restart redis": errors.New("exit 1")}}
	e, st := newTestEngine(config.RecoveryConfig{}, runner, nil)

	e.RestartService(context.Background(), config.Service{Name: "redis", RestartCommand: "systemctl restart redis"})

	// 命令失败但复探健康：记录失败，但不升级告警
	records := st.Recoveries()
	if len(records) != 1 || records[0].Success {
		t.Fatalf("重启命令失败应该记为失败: %+v", records)
	}
	if len(st.Alerts()) != 0 {
		t.Errorf("复探健康不应该升级告警，实际 %d 条", len(st.Alerts()))
	}
}

func TestProactiveSweepDispatch(t *testing.T) {
	runner := &fakeRunner{}
	e, st := newTestEngine(config.RecoveryConfig{PackageCacheCommand: "apt-get clean"}, runner, nil)

	now := time.Now()
	old := now.Add(-10 * time.Minute)

	st.AddAlert(&models.Alert{ID: "disk-1", Type: models.AlertHighDisk, Severity: models.SeverityCritical, CreatedAt: old})
	st.AddAlert(&models.Alert{ID: "disk-2", Type: models.AlertHighDisk, Severity: models.SeverityCritical, CreatedAt: old})
	st.AddAlert(&models.Alert{ID: "mem-1", Type: models.AlertHighMemory, Severity: models.SeverityCritical, CreatedAt: old})
	st.AddAlert(&models.Alert{ID: "fresh", Type: models.AlertHighDisk, Severity: models.SeverityCritical, CreatedAt: now.Add(-1 * time.Minute)})

	e.ProactiveSweep(context.Background(), now)

	// 同类型只分发一次：一次磁盘清理 + 一次内存清理
	records := st.Recoveries()
	actionCounts := make(map[models.RecoveryAction]int)
	for _, r := range records {
		actionCounts[r.Action]++
	}
	if actionCounts[models.ActionDiskCleanup] != 1 {
		t.Errorf("磁盘清理应该执行 1 次，实际 %d 次", actionCounts[models.ActionDiskCleanup])
	}
	if actionCounts[models.ActionMemoryCleanup] != 1 {
		t.Errorf("内存清理应该执行 1 次，实际 %d 次", actionCounts[models.ActionMemoryCleanup])
	}

	// 被分发的告警全部确认，新鲜告警保持未确认
	acked := make(map[string]bool)
	for _, alert := range st.Alerts() {
		acked[alert.ID] = alert.Acknowledged
	}
	for _, id := range []string{"disk-1", "disk-2", "mem-1"} {
		if !acked[id] {
			t.Errorf("告警 %s 应该被确认", id)
		}
	}
	if acked["fresh"] {
		t.Error("新鲜告警不应该被确认")
	}
}

func TestProactiveSweepServiceDownNoAction(t *testing.T) {
	runner := &fakeRunner{}
	e, st := newTestEngine(config.RecoveryConfig{}, runner, nil)

	now := time.Now()
	st.AddAlert(&models.Alert{ID: "svc", Type: models.AlertServiceDown, Severity: models.SeverityCritical, CreatedAt: now.Add(-10 * time.Minute)})

	e.ProactiveSweep(context.Background(), now)

	// SERVICE_DOWN 不执行动作，但仍然确认以免每个周期重复选中
	if got := len(st.Recoveries()); got != 0 {
		t.Errorf("SERVICE_DOWN 不应该触发恢复动作，实际 %d 条记录", got)
	}
	if !st.Alerts()[0].Acknowledged {
		t.Error("SERVICE_DOWN 告警应该被确认")
	}
}

func TestProactiveSweepRepeatCycle(t *testing.T) {
	runner := &fakeRunner{}
	e, st := newTestEngine(config.RecoveryConfig{PackageCacheCommand: "apt-get clean"}, runner, nil)

	now := time.Now()
	st.AddAlert(&models.Alert{ID: "disk", Type: models.AlertHighDisk, Severity: models.SeverityCritical, CreatedAt: now.Add(-10 * time.Minute)})

	e.ProactiveSweep(context.Background(), now)
	e.ProactiveSweep(context.Background(), now)

	// 第二个周期里告警已被确认，不再重复动作
	if got := len(st.Recoveries()); got != 1 {
		t.Errorf("同一告警不应该在后续周期重复处理，恢复记录 = %d", got)
	}
}

func TestRestartApplication(t *testing.T) {
	t.Run("未配置启停命令", func(t *testing.T) {
		runner := &fakeRunner{}
		e, st := newTestEngine(config.RecoveryConfig{}, runner, nil)

		e.RestartApplication(context.Background())

		records := st.Recoveries()
		if len(records) != 1 || records[0].Success {
			t.Fatalf("未配置启停命令应该记为失败: %+v", records)
		}
		if len(runner.commands) != 0 {
			t.Errorf("不应该执行任何命令: %v", runner.commands)
		}
	})

	t.Run("先停后启", func(t *testing.T) {
		runner := &fakeRunner{}
		cfg := config.RecoveryConfig{AppStopCommand: "stop-all", AppStartCommand: "start-all"}
		e, st := newTestEngine(cfg, runner, nil)

		e.RestartApplication(context.Background())

		if len(runner.commands) != 2 || runner.commands[0] != "stop-all" || runner.commands[1] != "start-all" {
			t.Fatalf("命令顺序不符合预期: %v", runner.commands)
		}
		records := st.Recoveries()
		if len(records) != 1 || !records[0].Success || records[0].Action != models.ActionApplicationRestart {
			t.Errorf("恢复记录不符合预期: %+v", records)
		}
	})

	t.Run("启动失败", func(t *testing.T) {
		runner := &fakeRunner{errs: map[string]error{"start-all": errors.New("exit 1")}}
		cfg := config.RecoveryConfig{AppStopCommand: "stop-all", AppStartCommand: "start-all"}
		e, st := newTestEngine(cfg, runner, nil)

		e.RestartApplication(context.Background())

		records := st.Recoveries()
		if len(records) != 1 || records[0].Success {
			t.Errorf("启动失败应该记为失败: %+v", records)
		}
	})
}
