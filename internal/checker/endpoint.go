package checker

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/store"
)

// HTTPTimeout 端点探测的请求超时
const HTTPTimeout = 10 * time.Second

// EndpointChecker HTTP 端点健康检查器，测量响应耗时与状态码
type EndpointChecker struct {
	endpoints []config.Endpoint
	store     *store.Store
	alerter   *alerter.Manager
	logger    *zap.Logger
	client    *http.Client
	threshold time.Duration // 响应时间阈值
}

// NewEndpoint 创建端点健康检查器
func NewEndpoint(logger *zap.Logger, endpoints []config.Endpoint, st *store.Store, am *alerter.Manager, responseTimeMillis int) *EndpointChecker {
	return &EndpointChecker{
		endpoints: endpoints,
		store:     st,
		alerter:   am,
		logger:    logger,
		client: &http.Client{
			Timeout: HTTPTimeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
		},
		threshold: time.Duration(responseTimeMillis) * time.Millisecond,
	}
}

// CheckAll 探测全部已配置的端点
func (c *EndpointChecker) CheckAll(ctx context.Context) {
	for _, endpoint := range c.endpoints {
		c.check(ctx, endpoint)
	}
}

// check 探测单个端点。请求失败、超时或返回 5xx 视为端点不可用；
// 收到 5xx 以下的响应则记录耗时与状态码，再按阈值判断是否告警。
func (c *EndpointChecker) check(ctx context.Context, endpoint config.Endpoint) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL, nil)
	if err != nil {
		c.recordDown(endpoint, err.Error())
		return
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		c.recordDown(endpoint, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordDown(endpoint, resp.Status)
		return
	}

	c.store.AppendEndpointResult(models.EndpointResult{
		Endpoint:   endpoint.Name,
		Timestamp:  time.Now(),
		Elapsed:    elapsed,
		StatusCode: resp.StatusCode,
	})

	if elapsed > c.threshold {
		c.alerter.Create(models.AlertHighResponseTime, map[string]any{
			"endpoint":    endpoint.Name,
			"url":         endpoint.URL,
			"elapsedMs":   elapsed.Milliseconds(),
			"thresholdMs": c.threshold.Milliseconds(),
		})
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.alerter.Create(models.AlertEndpointError, map[string]any{
			"endpoint":   endpoint.Name,
			"url":        endpoint.URL,
			"statusCode": resp.StatusCode,
		})
	}
}

// recordDown 记录探测失败并触发端点不可用告警
func (c *EndpointChecker) recordDown(endpoint config.Endpoint, reason string) {
	c.logger.Warn("端点探测失败",
		zap.String("endpoint", endpoint.Name),
		zap.String("reason", reason),
	)
	c.store.SetEndpointError(models.EndpointError{
		Endpoint:  endpoint.Name,
		Timestamp: time.Now(),
		Error:     reason,
	})
	c.alerter.Create(models.AlertEndpointDown, map[string]any{
		"endpoint": endpoint.Name,
		"url":      endpoint.URL,
		"error":    reason,
	})
}
