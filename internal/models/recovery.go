package models

import "time"

// RecoveryAction 恢复动作类型
type RecoveryAction string

const (
	ActionServiceRestart     RecoveryAction = "service_restart"
	ActionMemoryCleanup      RecoveryAction = "memory_cleanup"
	ActionDiskCleanup        RecoveryAction = "disk_cleanup"
	ActionApplicationRestart RecoveryAction = "application_restart"
)

// RecoveryRecord 恢复动作记录，每次执行后无论成败都追加一条
type RecoveryRecord struct {
	Action    RecoveryAction `json:"action"`
	Target    string         `json:"target,omitempty"` // 动作目标(服务名等)，可选
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Detail    string         `json:"detail,omitempty"` // 执行详情或错误信息
}
