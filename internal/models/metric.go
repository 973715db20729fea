package models

import "time"

// MetricCategory 指标类别
type MetricCategory string

const (
	CategoryCPU     MetricCategory = "cpu"
	CategoryMemory  MetricCategory = "memory"
	CategoryDisk    MetricCategory = "disk"
	CategoryNetwork MetricCategory = "network"
	CategoryProcess MetricCategory = "process"
)

// MetricSample 一次采集产生的指标样本（不可变，按保留窗口清理）
type MetricSample struct {
	Timestamp time.Time      `json:"timestamp"`
	Category  MetricCategory `json:"category"`
	Value     any            `json:"value"`
}

// CPUSample CPU 采样结果
type CPUSample struct {
	UsagePercent float64 `json:"usagePercent"` // 使用率(%)
	CoreCount    int     `json:"coreCount"`    // 逻辑核心数
}

// MemorySample 内存采样结果
type MemorySample struct {
	UsagePercent float64 `json:"usagePercent"` // 使用率(%)
	TotalBytes   uint64  `json:"totalBytes"`   // 总内存(字节)
	UsedBytes    uint64  `json:"usedBytes"`    // 已使用(字节)
	FreeBytes    uint64  `json:"freeBytes"`    // 空闲(字节)
}

// DiskSample 磁盘采样结果
type DiskSample struct {
	MountPoint   string  `json:"mountPoint"`   // 挂载点
	UsagePercent float64 `json:"usagePercent"` // 使用率(%)
	Total        string  `json:"total"`        // 总容量(可读格式)
	Used         string  `json:"used"`         // 已使用(可读格式)
	Available    string  `json:"available"`    // 可用(可读格式)
}

// InterfaceSample 单个网卡的包计数
type InterfaceSample struct {
	Name      string `json:"name"`      // 网卡名称
	RxOk      uint64 `json:"rxOk"`      // 接收成功包数
	RxErr     uint64 `json:"rxErr"`     // 接收错误包数
	RxDropped uint64 `json:"rxDropped"` // 接收丢弃包数
	TxOk      uint64 `json:"txOk"`      // 发送成功包数
	TxErr     uint64 `json:"txErr"`     // 发送错误包数
	TxDropped uint64 `json:"txDropped"` // 发送丢弃包数
}

// ProcessSample 进程表采样结果
type ProcessSample struct {
	TotalCount int           `json:"totalCount"` // 进程总数
	AppRelated []ProcessInfo `json:"appRelated"` // 与应用相关的进程
}

// ProcessInfo 单个进程信息
type ProcessInfo struct {
	PID     int32  `json:"pid"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline,omitempty"`
}
