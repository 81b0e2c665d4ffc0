package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	redisstorage "github.com/taoyao-code/iot-sdk/internal/storage/redis"
	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// Pusher 中继写入端
type Pusher interface {
	Push(ctx context.Context, key string, env *redisstorage.Envelope) error
}

// Publisher 设备侧发布者
type Publisher struct {
	q          Pusher
	blobPrefix string
	messageKey string
}

// NewPublisher 创建发布者
func NewPublisher(q Pusher, blobPrefix, messageKey string) *Publisher {
	return &Publisher{q: q, blobPrefix: blobPrefix, messageKey: messageKey}
}

// PublishBlob 发布一个数据块到 source 对应的列表
func (p *Publisher) PublishBlob(ctx context.Context, source string, b *datablob.DataBlob) error {
	return p.q.Push(ctx, BlobKey(p.blobPrefix, source), &redisstorage.Envelope{
		Kind:   redisstorage.KindBlob,
		Source: source,
		Time:   b.Time(),
		Data:   b.Data(),
	})
}

// PublishMessage 发布一条日志消息
func (p *Publisher) PublishMessage(ctx context.Context, m *message.Message) error {
	return p.q.Push(ctx, p.messageKey, &redisstorage.Envelope{
		Kind:  redisstorage.KindMessage,
		Time:  m.Time(),
		Level: int32(m.Level()),
		Text:  m.Value(),
	})
}

// Simulator 用空设备生成器模拟真实设备持续发布事件
type Simulator struct {
	pub         *Publisher
	catalog     datablob.Catalog
	blobRate    float64
	messageRate float64
	log         *zap.Logger
}

// NewSimulator 创建模拟器；速率非法返回 ErrInvalidConfiguration
func NewSimulator(pub *Publisher, cat datablob.Catalog, blobRate, messageRate float64, log *zap.Logger) (*Simulator, error) {
	if err := stream.ValidateRate(blobRate); err != nil {
		return nil, err
	}
	if err := stream.ValidateRate(messageRate); err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{pub: pub, catalog: cat, blobRate: blobRate, messageRate: messageRate,
		log: log.With(zap.String("component", "simulator"))}, nil
}

// Run 为每个数据块源与日志消息各启动一个发布协程，ctx 结束后返回
func (s *Simulator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, d := range s.catalog {
		gen, err := stream.Generate(s.blobRate, stream.SystemClock{}, datablob.NullGenerator())
		if err != nil {
			return err
		}
		name := d.Name
		wg.Add(1)
		go func() {
			defer wg.Done()
			publishLoop[*datablob.DataBlob](ctx, s.log.With(zap.String("source", name)), gen, func(b *datablob.DataBlob) error {
				return s.pub.PublishBlob(ctx, name, b)
			})
		}()
	}

	gen, err := stream.Generate(s.messageRate, stream.SystemClock{}, message.NullGenerator())
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		publishLoop[*message.Message](ctx, s.log.With(zap.String("source", "messages")), gen, func(m *message.Message) error {
			return s.pub.PublishMessage(ctx, m)
		})
	}()

	s.log.Info("device simulator started", zap.Int("sources", len(s.catalog)),
		zap.Float64("blob_rate", s.blobRate), zap.Float64("message_rate", s.messageRate))
	wg.Wait()
	s.log.Info("device simulator stopped")
	return nil
}

func publishLoop[T any](ctx context.Context, log *zap.Logger, src stream.Source[T], publish func(T) error) {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			return
		}
		if err := publish(ev); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("publish failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}
