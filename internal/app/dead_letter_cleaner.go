package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DeadLetterStore 死信列表
type DeadLetterStore interface {
	DeadCount(ctx context.Context) (int64, error)
	TrimDead(ctx context.Context, keep int64) (int64, error)
}

// DeadLetterCleaner 中继死信清理器
// 定期把死信列表裁剪到最近 keep 条
type DeadLetterCleaner struct {
	store         DeadLetterStore
	keep          int64
	logger        *zap.Logger
	checkInterval time.Duration

	statsCleaned atomic.Int64
}

// NewDeadLetterCleaner 创建死信清理器；interval<=0 时每小时清理一次
func NewDeadLetterCleaner(store DeadLetterStore, keep int64, interval time.Duration, logger *zap.Logger) *DeadLetterCleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &DeadLetterCleaner{
		store:         store,
		keep:          keep,
		logger:        logger,
		checkInterval: interval,
	}
}

// Start 启动清理循环，ctx 结束后返回
func (c *DeadLetterCleaner) Start(ctx context.Context) {
	c.logger.Info("dead letter cleaner started",
		zap.Duration("check_interval", c.checkInterval),
		zap.Int64("keep", c.keep))

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dead letter cleaner stopped",
				zap.Int64("total_cleaned", c.statsCleaned.Load()))
			return
		case <-ticker.C:
			c.clean(ctx)
		}
	}
}

func (c *DeadLetterCleaner) clean(ctx context.Context) {
	count, err := c.store.DeadCount(ctx)
	if err != nil {
		c.logger.Error("failed to get dead count", zap.Error(err))
		return
	}
	if count <= c.keep {
		return
	}

	cleaned, err := c.store.TrimDead(ctx, c.keep)
	if err != nil {
		c.logger.Error("failed to trim dead letters",
			zap.Error(err),
			zap.Int64("dead_count", count))
		return
	}
	c.statsCleaned.Add(cleaned)
	c.logger.Warn("trimmed relay dead letters",
		zap.Int64("cleaned", cleaned),
		zap.Int64("remaining", count-cleaned),
		zap.Int64("total_cleaned", c.statsCleaned.Load()))
}

// Stats 获取统计信息
func (c *DeadLetterCleaner) Stats() map[string]interface{} {
	return map[string]interface{}{
		"total_cleaned": c.statsCleaned.Load(),
	}
}
