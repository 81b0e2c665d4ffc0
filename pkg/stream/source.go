package stream

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRate 默认生成速率（事件/秒）
const DefaultRate = 30.0

// Source 事件来源：阻塞直到下一个事件就绪或 ctx 结束。
// 只由所属控制器的生产者协程调用。
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
}

// Resetter 可选接口：每次 Stopped -> Running 时由生产者调用，重新开始节拍
type Resetter interface {
	Reset(now time.Time)
}

// GenerateFunc 按序号（从 1 开始）与时间戳构造一个事件
type GenerateFunc[T any] func(seq uint64, at time.Time) T

// ValidateRate 校验速率：必须为有限正数
func ValidateRate(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return fmt.Errorf("%w: rate must be a positive number, got %v", ErrInvalidConfiguration, r)
	}
	return nil
}

// Generator 基于令牌桶的定速事件生成器（burst=1）
type Generator[T any] struct {
	rate    float64
	limiter *rate.Limiter
	clock   Clock
	gen     GenerateFunc[T]
	seq     uint64
}

// Generate 创建定速生成器；速率非法时返回 ErrInvalidConfiguration
func Generate[T any](ratePerSec float64, clock Clock, gen GenerateFunc[T]) (*Generator[T], error) {
	if err := ValidateRate(ratePerSec); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: nil generate func", ErrInvalidConfiguration)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	g := &Generator[T]{rate: ratePerSec, clock: clock, gen: gen}
	g.Reset(time.Now())
	return g, nil
}

// Reset 重建令牌桶并消耗初始令牌：下一个事件在一个周期之后产生
func (g *Generator[T]) Reset(now time.Time) {
	g.limiter = rate.NewLimiter(rate.Limit(g.rate), 1)
	g.limiter.AllowN(now, 1)
}

// Next 等待下一个节拍并生成事件
func (g *Generator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := g.limiter.Wait(ctx); err != nil {
		return zero, err
	}
	g.seq++
	return g.gen(g.seq, g.clock.Now()), nil
}

// Rate 配置的速率（事件/秒）
func (g *Generator[T]) Rate() float64 {
	return g.rate
}

// Interval 相邻事件的间隔
func (g *Generator[T]) Interval() time.Duration {
	return time.Duration(float64(time.Second) / g.rate)
}
