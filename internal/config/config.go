package config

import (
	"os"

	"github.com/go-errors/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config 应用配置，启动后只读
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Intervals  IntervalsConfig  `yaml:"intervals"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Services   []Service        `yaml:"services" validate:"dive"`
	Endpoints  []Endpoint       `yaml:"endpoints" validate:"dive"`
	Recovery   RecoveryConfig   `yaml:"recovery"`
	Notify     NotifyConfig     `yaml:"notify"`

	MountPoint   string `yaml:"mountPoint"`   // 磁盘采样的挂载点
	StatusLogDir string `yaml:"statusLogDir"` // 每日状态日志目录
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件大小(MB)
	MaxBackups int    `yaml:"maxBackups"` // 保留的旧日志文件数
	MaxAge     int    `yaml:"maxAge"`     // 保留天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
}

// ServerConfig 只读 API 配置（可选）
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// IntervalsConfig 各周期任务的执行间隔(秒)
type IntervalsConfig struct {
	System    int `yaml:"system" validate:"omitempty,min=1"`
	Service   int `yaml:"service" validate:"omitempty,min=1"`
	Endpoint  int `yaml:"endpoint" validate:"omitempty,min=1"`
	Retention int `yaml:"retention" validate:"omitempty,min=1"`
}

// ThresholdsConfig 告警阈值
type ThresholdsConfig struct {
	CPU          float64 `yaml:"cpu" validate:"omitempty,gt=0,lte=100"`          // CPU 使用率(%)
	Memory       float64 `yaml:"memory" validate:"omitempty,gt=0,lte=100"`       // 内存使用率(%)
	Disk         float64 `yaml:"disk" validate:"omitempty,gt=0,lte=100"`         // 磁盘使用率(%)
	ResponseTime int     `yaml:"responseTime" validate:"omitempty,min=1"`        // 端点响应时间(毫秒)
	ErrorRate    float64 `yaml:"errorRate" validate:"omitempty,gte=0,lte=100"`   // 端点容忍错误率(%)
}

// ProbeType 服务探测方式
type ProbeType string

const (
	ProbeCommand ProbeType = "command"
	ProbeTCP     ProbeType = "tcp"
	ProbeICMP    ProbeType = "icmp"
)

// Probe 服务探测配置
type Probe struct {
	Type    ProbeType `yaml:"type" validate:"required,oneof=command tcp icmp"`
	Command string    `yaml:"command" validate:"required_if=Type command"` // command 探测执行的命令
	Port    int       `yaml:"port" validate:"required_if=Type tcp,omitempty,min=1,max=65535"`
	Host    string    `yaml:"host"` // tcp/icmp 探测目标，默认 127.0.0.1
}

// Service 被管理的服务描述（运行期不可变）
type Service struct {
	Name           string `yaml:"name" validate:"required"`
	Probe          Probe  `yaml:"probe"`
	RestartCommand string `yaml:"restartCommand" validate:"required"`
}

// Endpoint HTTP 端点描述（运行期不可变）
type Endpoint struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
}

// RecoveryConfig 自动恢复配置。
// 自动恢复会删除文件并重启服务，默认关闭，需要显式设置 enabled: true；
// 关闭时探测与告警照常工作，只是不执行恢复动作。
type RecoveryConfig struct {
	Enabled             bool   `yaml:"enabled"`             // 默认 false
	CacheDir            string `yaml:"cacheDir"`            // 应用缓存目录(内存清理时清空)
	LogDir              string `yaml:"logDir"`              // 日志目录(磁盘清理时删除过期日志)
	TempDir             string `yaml:"tempDir"`             // 临时文件目录
	TempFilePrefix      string `yaml:"tempFilePrefix"`      // 应用临时文件命名前缀
	BackupDir           string `yaml:"backupDir"`           // 备份归档目录
	PackageCacheCommand string `yaml:"packageCacheCommand"` // 清理包管理器缓存的命令
	AppStopCommand      string `yaml:"appStopCommand"`      // 停止全部托管进程的命令
	AppStartCommand     string `yaml:"appStartCommand"`     // 启动全部托管进程的命令
}

// NotifyConfig 通知渠道配置
type NotifyConfig struct {
	Email   *EmailConfig   `yaml:"email"`
	Webhook *WebhookConfig `yaml:"webhook"`
}

// EmailConfig 邮件通知配置
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host" validate:"required_if=Enabled true"`
	Port     int      `yaml:"port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" validate:"required_if=Enabled true"`
	To       []string `yaml:"to" validate:"required_if=Enabled true"`
}

// WebhookConfig Webhook 通知配置
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
}

// Load 加载并校验配置文件，校验失败视为致命错误，调度器不得启动
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("读取配置文件失败: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("解析配置文件失败: %v", err)
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Errorf("配置校验失败: %v", err)
	}

	return &cfg, nil
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 50
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 7
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:9300"
	}
	if c.Intervals.System <= 0 {
		c.Intervals.System = 60
	}
	if c.Intervals.Service <= 0 {
		c.Intervals.Service = 30
	}
	if c.Intervals.Endpoint <= 0 {
		c.Intervals.Endpoint = 15
	}
	if c.Intervals.Retention <= 0 {
		c.Intervals.Retention = 3600
	}
	if c.Thresholds.CPU <= 0 {
		c.Thresholds.CPU = 80
	}
	if c.Thresholds.Memory <= 0 {
		c.Thresholds.Memory = 85
	}
	if c.Thresholds.Disk <= 0 {
		c.Thresholds.Disk = 90
	}
	if c.Thresholds.ResponseTime <= 0 {
		c.Thresholds.ResponseTime = 2000
	}
	if c.Thresholds.ErrorRate <= 0 {
		c.Thresholds.ErrorRate = 5
	}
	for i := range c.Services {
		if c.Services[i].Probe.Host == "" {
			c.Services[i].Probe.Host = "127.0.0.1"
		}
	}
	if c.Recovery.PackageCacheCommand == "" {
		c.Recovery.PackageCacheCommand = "apt-get clean"
	}
	if c.Recovery.TempFilePrefix == "" {
		c.Recovery.TempFilePrefix = "tmp_"
	}
	if c.MountPoint == "" {
		c.MountPoint = "/"
	}
	if c.StatusLogDir == "" {
		c.StatusLogDir = "logs"
	}
}
