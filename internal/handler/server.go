package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server 只读 API 的 HTTP 服务
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
}

// NewServer 创建 HTTP 服务并注册路由
func NewServer(logger *zap.Logger, h *Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	h.Register(e)

	return &Server{
		echo:   e,
		logger: logger,
	}
}

// Start 启动 HTTP 服务，阻塞直到服务关闭
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP 服务启动", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown 优雅关闭 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
