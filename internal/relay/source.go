// Package relay 设备中继：真实设备把事件写入 Redis 列表，
// SDK 的生产者协程从列表阻塞读取并交给流控制器。
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdk/internal/metrics"
	redisstorage "github.com/taoyao-code/iot-sdk/internal/storage/redis"
	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
)

// Queue 中继读取端
type Queue interface {
	Pop(ctx context.Context, key string, timeout time.Duration) (*redisstorage.Envelope, error)
	Clear(ctx context.Context, key string) (int64, error)
}

// Options 中继来源选项
type Options struct {
	PollTimeout time.Duration // 单次 BLPOP 等待上限，同时决定停止/关闭的响应延迟
	Logger      *zap.Logger
	Metrics     *metrics.StreamMetrics
}

func (o Options) withDefaults() Options {
	if o.PollTimeout <= 0 {
		o.PollTimeout = time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Source 从一个 Redis 列表读取并解码事件
type Source[T any] struct {
	q      Queue
	key    string
	opts   Options
	log    *zap.Logger
	decode func(*redisstorage.Envelope) (T, error)
}

func newSource[T any](q Queue, key string, opts Options, decode func(*redisstorage.Envelope) (T, error)) *Source[T] {
	opts = opts.withDefaults()
	return &Source[T]{
		q:      q,
		key:    key,
		opts:   opts,
		log:    opts.Logger.With(zap.String("component", "relay"), zap.String("key", key)),
		decode: decode,
	}
}

// NewBlobSource 数据块中继来源
func NewBlobSource(q Queue, key string, opts Options) *Source[*datablob.DataBlob] {
	return newSource(q, key, opts, DecodeBlob)
}

// NewMessageSource 日志消息中继来源
func NewMessageSource(q Queue, key string, opts Options) *Source[*message.Message] {
	return newSource(q, key, opts, DecodeMessage)
}

// Key 读取的列表键
func (s *Source[T]) Key() string { return s.key }

// Next 阻塞直到读到一个可解码的事件。Redis 错误原样返回，由控制器退避重试。
func (s *Source[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		env, err := s.q.Pop(ctx, s.key, s.opts.PollTimeout)
		if errors.Is(err, redisstorage.ErrMalformedEnvelope) {
			s.count("error")
			s.log.Warn("relay envelope dropped", zap.Error(err))
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, fmt.Errorf("relay pop %s: %w", s.key, err)
		}
		if env == nil {
			continue
		}

		ev, err := s.decode(env)
		if err != nil {
			s.count("error")
			s.log.Warn("relay envelope rejected", zap.String("id", env.ID), zap.Error(err))
			continue
		}
		s.count("ok")
		return ev, nil
	}
}

// Reset 重新开始推流时丢弃停止期间积压在列表中的事件
func (s *Source[T]) Reset(time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PollTimeout)
	defer cancel()
	n, err := s.q.Clear(ctx, s.key)
	if err != nil {
		s.log.Warn("relay backlog clear failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("relay backlog discarded", zap.Int64("count", n))
	}
}

func (s *Source[T]) count(result string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RelayDecoded.WithLabelValues(s.key, result).Inc()
	}
}

// DecodeBlob 信封转数据块
func DecodeBlob(env *redisstorage.Envelope) (*datablob.DataBlob, error) {
	if env.Kind != redisstorage.KindBlob {
		return nil, fmt.Errorf("unexpected envelope kind %q", env.Kind)
	}
	return datablob.NewDataBlob(env.Time, env.Data), nil
}

// DecodeMessage 信封转日志消息
func DecodeMessage(env *redisstorage.Envelope) (*message.Message, error) {
	if env.Kind != redisstorage.KindMessage {
		return nil, fmt.Errorf("unexpected envelope kind %q", env.Kind)
	}
	return message.NewMessage(env.Text, env.Time, message.Level(env.Level)), nil
}
