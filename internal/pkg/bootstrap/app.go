// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/nacos"
	"storefront/internal/pkg/tracing"
	"storefront/internal/pkg/utils"
)

// AppInfo 包含启动一个服务所需的特定信息
type AppInfo struct {
	ServiceName string
	Config      *config.Config
	// RegisterHandlers 允许服务注册自己的路由，公共中间件已挂载
	RegisterHandlers func(r chi.Router)
	// Shutdown 在 HTTP 服务停止之后按顺序调用，用于关闭 DB、MQ 等资源
	Shutdown []func(ctx context.Context) error
}

// NewRouter 构建带有公共中间件与运维路由的 chi 路由器
func NewRouter(serviceName string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.Prometheus)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// StartService 封装了通用的启动与优雅关停逻辑，阻塞直到收到退出信号
func StartService(info AppInfo) {
	cfg := info.Config

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Tracing.JaegerEndpoint, cfg.App.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var (
		registry *nacos.Registry
		ip       string
	)
	if cfg.Nacos.Enabled {
		registry, err = nacos.NewRegistry(cfg.Nacos)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = utils.GetOutboundIP()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := registry.Register(info.ServiceName, ip, cfg.App.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	router := NewRouter(info.ServiceName)
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(router)
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("service", info.ServiceName).Int("port", cfg.App.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Str("service", info.ServiceName).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// 先从注册中心摘除，避免新流量进入
	if registry != nil {
		if err := registry.Deregister(info.ServiceName, ip, cfg.App.Port); err != nil {
			log.Error().Err(err).Msg("error deregistering from nacos")
		}
		registry.Close()
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	for _, fn := range info.Shutdown {
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Msg("error during shutdown hook")
		}
	}

	// 最后关闭 tracer，确保关停过程中产生的 span 也被导出
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}

	log.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
}
