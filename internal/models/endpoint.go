package models

import "time"

// EndpointResult 端点探测成功(收到响应)时的记录，用于可用率计算
type EndpointResult struct {
	Endpoint   string        `json:"endpoint"`
	Timestamp  time.Time     `json:"timestamp"`
	Elapsed    time.Duration `json:"elapsed"`    // 响应耗时
	StatusCode int           `json:"statusCode"` // HTTP 状态码
}

// EndpointError 端点探测失败(超时或连接错误)时的最近一次错误
type EndpointError struct {
	Endpoint  string    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}
