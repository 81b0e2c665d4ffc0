package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdk/internal/app"
	cfgpkg "github.com/taoyao-code/iot-sdk/internal/config"
	"github.com/taoyao-code/iot-sdk/internal/console"
	"github.com/taoyao-code/iot-sdk/internal/metrics"
	"github.com/taoyao-code/iot-sdk/internal/relay"
	redisstorage "github.com/taoyao-code/iot-sdk/internal/storage/redis"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

// ShutdownTimeout 优雅关闭等待上限
const ShutdownTimeout = 10 * time.Second

// Run 统一启动流程：依赖就绪后再打开 SDK 与控制台，ctx 结束时优雅关闭
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, level zap.AtomicLevel) error {
	instanceID := app.GenerateInstanceID()
	log = log.With(zap.String("instance", instanceID))
	log.Info("starting iot sdk console", zap.String("version", sdk.CurrentVersion.String()))

	// ========== 阶段1: 基础组件 ==========
	reg, sm := app.NewMetrics()
	metricsHandler := metrics.Handler(reg)

	cat, err := app.LoadCatalog(cfg.Device.Catalog)
	if err != nil {
		log.Error("catalog load failed", zap.Error(err))
		return err
	}
	log.Info("data blob catalog loaded", zap.Strings("sources", cat.Names()))

	// ========== 阶段2: 设备中继（可选）==========
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	wctx, wcancel := context.WithCancel(context.Background())
	defer wcancel()

	var queue relay.Queue
	var relayQueue *redisstorage.EventQueue
	if redisClient != nil {
		relayQueue = app.NewRelayQueue(redisClient, cfg.Relay)
		if cfg.Relay.Enabled {
			queue = relayQueue
			go app.NewDeadLetterCleaner(relayQueue, cfg.Relay.DeadKeep, 0, log).Start(wctx)
		}
	}

	// ========== 阶段3: 打开 SDK ==========
	api, err := app.NewAPI(cfg, cat, log, level, sm, queue)
	if err != nil {
		log.Error("sdk open failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := api.Close(); err != nil {
			log.Warn("sdk close reported errors", zap.Error(err))
		}
	}()

	// ========== 阶段4: 健康检查与 HTTP 控制台 ==========
	healthAgg := app.NewHealthAggregator(api)
	if redisClient != nil {
		app.AddRedisChecker(healthAgg, redisClient, relayQueue)
	}

	readyFn := func() bool { return healthAgg.Ready(context.Background()) }
	httpSrv := app.NewHTTPServer(cfg, metricsHandler, readyFn, log)
	httpSrv.Register(func(r *gin.Engine) {
		console.RegisterRoutes(r, api, cfg.HTTP.Auth, log)
		app.RegisterHealthRoutes(r, healthAgg)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start()
	}()
	log.Info("http console started",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("relay", queue != nil),
		zap.Bool("swagger", cfg.HTTP.Swagger))

	// ========== 阶段5: 等待关闭 ==========
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, gracefully shutting down...")
	case runErr = <-errCh:
		log.Error("http server error", zap.Error(runErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(sctx)
	log.Info("http server stopped")

	log.Info("shutdown complete")
	return runErr
}
