package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdk/internal/config"
	"github.com/taoyao-code/iot-sdk/internal/health"
	redisstorage "github.com/taoyao-code/iot-sdk/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端，未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewRelayQueue 创建设备中继事件队列
func NewRelayQueue(client *redisstorage.Client, cfg cfgpkg.RelayConfig) *redisstorage.EventQueue {
	return redisstorage.NewEventQueue(client, cfg.DeadKey)
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, client *redisstorage.Client, queue *redisstorage.EventQueue) {
	if client != nil {
		aggregator.AddChecker(health.NewRedisChecker(client, queue))
	}
}
