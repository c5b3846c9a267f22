package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bazaar-next/internal/config"
)

// HTTPService 承载 gin 引擎的 http.Server
type HTTPService struct {
	server *http.Server
}

// NewHTTPService 按 server 配置创建 HTTP 服务
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	readHeader := time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	if readHeader <= 0 {
		readHeader = 10 * time.Second
	}
	return &HTTPService{server: &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
	}}
}

// Name 服务名称
func (s *HTTPService) Name() string { return "http" }

// Addr 监听地址
func (s *HTTPService) Addr() string { return s.server.Addr }

// Start 阻塞监听；关闭由 Stop 触发
func (s *HTTPService) Start(context.Context) error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 优雅关闭，等待在途请求结束
func (s *HTTPService) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
