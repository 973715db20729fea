package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/logger"
	"github.com/dushixiang/lynx/internal/monitor"
)

// program 实现 service.Interface
type program struct {
	cfg    *config.Config
	logger *zap.Logger
	mon    *monitor.Monitor
	ctx    context.Context
	cancel context.CancelFunc
}

// Start 启动服务
func (p *program) Start(s service.Service) error {
	p.logger = logger.New(p.cfg.Log)
	p.logger.Info("Lynx 监控服务启动中...")

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.mon = monitor.New(p.logger, p.cfg)
	return p.mon.Start(p.ctx)
}

// Stop 停止服务
func (p *program) Stop(s service.Service) error {
	if p.logger != nil {
		p.logger.Info("Lynx 监控服务停止中...")
	}

	if p.cancel != nil {
		p.cancel()
	}
	if p.mon != nil {
		p.mon.Stop()
	}
	return nil
}

// Manager 系统服务管理器
type Manager struct {
	cfg     *config.Config
	service service.Service
}

// NewManager 创建服务管理器
func NewManager(cfg *config.Config, cfgPath string) (*Manager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	svcConfig := &service.Config{
		Name:        "lynx",
		DisplayName: "Lynx Monitor",
		Description: "Lynx 自愈监控 - 采集系统指标、探测服务健康并自动恢复异常",
		Arguments:   []string{"run", "--config", cfgPath},
		Executable:  execPath,
		Option: service.KeyValue{
			// Linux systemd 配置
			"Restart":            "always",
			"RestartSec":         "10",
			"StartLimitInterval": "0",
			"KillMode":           "process",

			// Windows 配置
			"OnFailure":    "restart",
			"ResetPeriod":  86400,
			"RestartDelay": 10000,

			// 其他 Unix 系统 (upstart/launchd)
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	prg := &program{cfg: cfg}

	s, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}

	return &Manager{
		cfg:     cfg,
		service: s,
	}, nil
}

// Install 安装服务
func (m *Manager) Install() error {
	return m.service.Install()
}

// Uninstall 卸载服务
func (m *Manager) Uninstall() error {
	// 先停止服务
	_ = m.service.Stop()
	return m.service.Uninstall()
}

// Start 启动服务
func (m *Manager) Start() error {
	return m.service.Start()
}

// Stop 停止服务
func (m *Manager) Stop() error {
	return m.service.Stop()
}

// Restart 重启服务
func (m *Manager) Restart() error {
	return m.service.Restart()
}

// Status 查看服务状态
func (m *Manager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}

	switch status {
	case service.StatusRunning:
		return "运行中 (Running)", nil
	case service.StatusStopped:
		return "已停止 (Stopped)", nil
	case service.StatusUnknown:
		return "未知 (Unknown)", nil
	default:
		return fmt.Sprintf("状态: %d", status), nil
	}
}

// Run 运行服务（前台或由服务管理器托管）
func (m *Manager) Run() error {
	if !service.Interactive() {
		// 在服务管理器控制下运行
		return m.service.Run()
	}

	// 交互模式（前台运行）
	log := logger.New(m.cfg.Log)
	log.Info("配置加载成功",
		zap.Int("services", len(m.cfg.Services)),
		zap.Int("endpoints", len(m.cfg.Endpoints)),
		zap.Bool("recovery", m.cfg.Recovery.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(log, m.cfg)
	if err := mon.Start(ctx); err != nil {
		return err
	}

	// 等待中断信号
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info("收到中断信号，正在关闭...")
	cancel()
	mon.Stop()
	return nil
}
