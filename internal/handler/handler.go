package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/alerter"
	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/report"
	"github.com/dushixiang/lynx/internal/store"
)

// Handler 只读 API 处理器，供 CLI 或外部系统按需获取健康状态
type Handler struct {
	logger   *zap.Logger
	store    *store.Store
	alerter  *alerter.Manager
	reporter *report.Generator
}

// New 创建处理器
func New(logger *zap.Logger, st *store.Store, am *alerter.Manager, reporter *report.Generator) *Handler {
	return &Handler{
		logger:   logger,
		store:    st,
		alerter:  am,
		reporter: reporter,
	}
}

// Register 注册路由
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/health-report", h.HealthReport)
	api.GET("/alerts", h.ListAlerts)
	api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	api.GET("/recoveries", h.ListRecoveries)
	api.GET("/metrics/latest", h.LatestMetrics)
}

// HealthReport 获取健康报告
// GET /api/health-report
func (h *Handler) HealthReport(c echo.Context) error {
	return c.JSON(http.StatusOK, h.reporter.HealthReport())
}

// ListAlerts 查询告警
// GET /api/alerts
func (h *Handler) ListAlerts(c echo.Context) error {
	alerts := h.store.Alerts()

	// 可选按未确认过滤
	if c.QueryParam("unacknowledged") == "true" {
		filtered := make([]models.Alert, 0, len(alerts))
		for _, alert := range alerts {
			if !alert.Acknowledged {
				filtered = append(filtered, alert)
			}
		}
		alerts = filtered
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
	})
}

// AcknowledgeAlert 确认告警
// POST /api/alerts/:id/acknowledge
func (h *Handler) AcknowledgeAlert(c echo.Context) error {
	alertID := c.Param("id")
	if alertID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "告警ID不能为空",
		})
	}

	if !h.alerter.Acknowledge(alertID) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "告警不存在",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "告警已确认",
	})
}

// ListRecoveries 查询恢复动作记录
// GET /api/recoveries
func (h *Handler) ListRecoveries(c echo.Context) error {
	records := h.store.Recoveries()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": records,
		"total": len(records),
	})
}

// LatestMetrics 获取各类指标的最新样本
// GET /api/metrics/latest
func (h *Handler) LatestMetrics(c echo.Context) error {
	categories := []models.MetricCategory{
		models.CategoryCPU,
		models.CategoryMemory,
		models.CategoryDisk,
		models.CategoryNetwork,
		models.CategoryProcess,
	}

	latest := make(map[models.MetricCategory]any, len(categories))
	for _, category := range categories {
		samples := h.store.LatestSamples(category, 1)
		if len(samples) > 0 {
			latest[category] = samples[0]
		}
	}

	return c.JSON(http.StatusOK, latest)
}
