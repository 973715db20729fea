package command

import (
	"context"
	"os/exec"
	"time"

	"github.com/go-errors/errors"
)

// DefaultTimeout 外部命令的保守超时，避免卡死的命令拖住后续周期任务
const DefaultTimeout = 10 * time.Second

// Runner 执行外部命令，返回合并输出
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// ShellRunner 通过 shell 执行命令，每次执行都带超时
type ShellRunner struct {
	Timeout time.Duration
}

// NewShellRunner 创建命令执行器
func NewShellRunner() *ShellRunner {
	return &ShellRunner{Timeout: DefaultTimeout}
}

// Run 执行命令并等待结束，超时或非零退出码视为失败
func (r *ShellRunner) Run(ctx context.Context, command string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), errors.Errorf("命令执行失败: %v", err)
	}
	return string(output), nil
}
