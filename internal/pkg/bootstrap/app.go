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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tally/internal/pkg/config"
	"tally/internal/pkg/logger"
	"tally/internal/pkg/nacos"
	"tally/internal/pkg/utils"
	"tally/internal/tracing"
)

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// AppInfo 包含了启动一个服务进程所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务挂载自己的 HTTP 路由（健康检查之外的）
	RegisterHandlers func(appCtx AppCtx)
	// Run 是服务的后台主体（消费循环、派发器等），收到退出信号时 ctx 会被取消
	Run func(ctx context.Context) error
	// Cleanup 在 HTTP 服务器关闭后执行, 用于释放连接类资源 (后进先出)
	Cleanup []func()
}

// StartService 封装了所有服务进程的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := config.Get()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. Nacos 注册
	namingClient, err := nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize nacos client")
	}
	ip, err := utils.GetOutboundIP()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to get outbound IP address")
	}
	if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		logger.L().Fatal().Err(err).Msg("failed to register service with nacos")
	}

	// 3. HTTP Server: healthz + prometheus, 外加服务自己的路由
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.L().Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("✅ http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal().Err(err).Msg("http server failed")
		}
	}()

	// 4. 后台主体
	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	if info.Run != nil {
		go func() { runDone <- info.Run(runCtx) }()
	}

	// 5. 等待退出信号或主体异常退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.L().Info().Str("service", info.ServiceName).Msg("🛑 shutdown signal received")
	case err := <-runDone:
		if err != nil {
			logger.L().Error().Err(err).Msg("service run loop exited with error")
		}
	}
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 6. 关停流程 (后进先出)
	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		logger.L().Error().Err(err).Msg("failed to deregister from nacos")
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("failed to shut down http server")
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("failed to shut down tracer provider")
	}
	for i := len(info.Cleanup) - 1; i >= 0; i-- {
		info.Cleanup[i]()
	}

	logger.L().Info().Str("service", info.ServiceName).Msg("service gracefully shut down")
}
