package health

import (
	"context"
	"fmt"
	"time"

	redisstorage "github.com/taoyao-code/iot-sdk/internal/storage/redis"
)

// RedisChecker 中继 Redis 健康检查器
type RedisChecker struct {
	client *redisstorage.Client
	queue  *redisstorage.EventQueue
}

// NewRedisChecker 创建 Redis 健康检查器；queue 非空时附带死信数量
func NewRedisChecker(client *redisstorage.Client, queue *redisstorage.EventQueue) *RedisChecker {
	return &RedisChecker{client: client, queue: queue}
}

// Name 返回检查器名称
func (c *RedisChecker) Name() string {
	return "redis"
}

// Check 执行健康检查
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.client.Stats()
	utilization := 0.0
	if stats.TotalConns > 0 {
		utilization = float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
	}

	status := StatusHealthy
	message := "ok"

	if utilization > 0.9 {
		status = StatusDegraded
		message = "connection pool near limit"
	}

	if stats.Misses > stats.Hits && stats.Hits > 0 {
		status = StatusDegraded
		message = "low connection pool hit rate"
	}

	details := map[string]interface{}{
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"utilization": fmt.Sprintf("%.1f%%", utilization*100),
	}
	if c.queue != nil {
		if dead, err := c.queue.DeadCount(ctx); err == nil {
			details["dead_letters"] = dead
		}
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
