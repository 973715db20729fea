package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/pkg/service"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "lynx",
	Short: "自愈式主机与应用监控",
	Long:  "Lynx 持续采集系统指标、探测服务与端点健康，越界时告警并尝试有限度的自动恢复。",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "运行监控器",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		return mgr.Run()
	},
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "管理系统服务",
}

// newManager 加载配置并创建服务管理器。
// 配置错误在这里直接失败，调度器不会启动。
func newManager() (*service.Manager, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return service.NewManager(cfg, cfgPath)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "lynx.yaml", "配置文件路径")

	serviceCmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "安装为系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				if err := mgr.Install(); err != nil {
					return err
				}
				fmt.Println("服务安装成功")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "卸载系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				if err := mgr.Uninstall(); err != nil {
					return err
				}
				fmt.Println("服务卸载成功")
				return nil
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "启动系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				return mgr.Start()
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "停止系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				return mgr.Stop()
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "重启系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				return mgr.Restart()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "查看服务状态",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				status, err := mgr.Status()
				if err != nil {
					return err
				}
				fmt.Println(status)
				return nil
			},
		},
	)

	rootCmd.AddCommand(runCmd, serviceCmd)
}

// Execute 运行根命令
func Execute() error {
	return rootCmd.Execute()
}
