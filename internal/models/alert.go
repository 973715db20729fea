package models

import "time"

// AlertType 告警类型
type AlertType string

const (
	AlertHighCPU              AlertType = "HIGH_CPU"
	AlertHighMemory           AlertType = "HIGH_MEMORY"
	AlertHighDisk             AlertType = "HIGH_DISK"
	AlertServiceDown          AlertType = "SERVICE_DOWN"
	AlertServiceRestartFailed AlertType = "SERVICE_RESTART_FAILED"
	AlertEndpointDown         AlertType = "ENDPOINT_DOWN"
	AlertEndpointError        AlertType = "ENDPOINT_ERROR"
	AlertHighResponseTime     AlertType = "HIGH_RESPONSE_TIME"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// severityTable 告警类型到级别的静态映射，级别只由类型决定
var severityTable = map[AlertType]Severity{
	AlertHighCPU:              SeverityWarning,
	AlertHighMemory:           SeverityCritical,
	AlertHighDisk:             SeverityCritical,
	AlertServiceDown:          SeverityCritical,
	AlertServiceRestartFailed: SeverityCritical,
	AlertEndpointDown:         SeverityCritical,
	AlertEndpointError:        SeverityWarning,
	AlertHighResponseTime:     SeverityWarning,
}

// SeverityFor 查询告警类型对应的级别，未登记的类型默认为 info
func SeverityFor(t AlertType) Severity {
	if level, ok := severityTable[t]; ok {
		return level
	}
	return SeverityInfo
}

// Alert 告警记录
type Alert struct {
	ID           string         `json:"id"`
	Type         AlertType      `json:"type"`
	Severity     Severity       `json:"severity"`
	Data         map[string]any `json:"data,omitempty"` // 附加数据(指标值、目标名称等)
	CreatedAt    time.Time      `json:"createdAt"`
	Acknowledged bool           `json:"acknowledged"`
}
