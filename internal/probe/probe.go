package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/dushixiang/lynx/internal/command"
	"github.com/dushixiang/lynx/internal/config"
)

// TCPTimeout TCP 探测的连接超时
const TCPTimeout = 2 * time.Second

// ICMPTimeout ICMP 探测的总超时
const ICMPTimeout = 2 * time.Second

// Func 服务探测函数，返回 nil 表示服务健康
type Func func(ctx context.Context, svc config.Service) error

// Prober 按服务配置执行探测
type Prober struct {
	runner command.Runner
}

// New 创建探测器
func New(runner command.Runner) *Prober {
	return &Prober{runner: runner}
}

// Probe 探测单个服务，任何错误或超时都视为不健康
func (p *Prober) Probe(ctx context.Context, svc config.Service) error {
	switch svc.Probe.Type {
	case config.ProbeCommand:
		return p.probeCommand(ctx, svc)
	case config.ProbeTCP:
		return probeTCP(svc)
	case config.ProbeICMP:
		return probeICMP(svc)
	default:
		return fmt.Errorf("不支持的探测类型: %s", svc.Probe.Type)
	}
}

// probeCommand 执行探测命令，退出码为 0 视为健康
func (p *Prober) probeCommand(ctx context.Context, svc config.Service) error {
	_, err := p.runner.Run(ctx, svc.Probe.Command)
	return err
}

// probeTCP 在 2 秒内完成 TCP 连接视为健康
func probeTCP(svc config.Service) error {
	addr := net.JoinHostPort(svc.Probe.Host, fmt.Sprintf("%d", svc.Probe.Port))
	conn, err := net.DialTimeout("tcp", addr, TCPTimeout)
	if err != nil {
		return fmt.Errorf("连接 %s 失败: %w", addr, err)
	}
	_ = conn.Close()
	return nil
}

// probeICMP 收到至少一个回包视为健康
func probeICMP(svc config.Service) error {
	pinger, err := probing.NewPinger(svc.Probe.Host)
	if err != nil {
		return fmt.Errorf("创建 pinger 失败: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = ICMPTimeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		// 非特权模式失败时尝试特权模式（需要 root 权限或 CAP_NET_RAW）
		pinger.SetPrivileged(true)
		if err := pinger.Run(); err != nil {
			return fmt.Errorf("ping %s 失败: %w", svc.Probe.Host, err)
		}
	}

	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("ping %s 无响应", svc.Probe.Host)
	}
	return nil
}
