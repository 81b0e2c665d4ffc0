package sdk

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// BlobSourceFactory 为打开的数据块源提供事件来源（如设备中继）；返回 nil 时使用空设备
type BlobSourceFactory func(desc datablob.Description, props datablob.StreamProperties) (stream.Source[*datablob.DataBlob], error)

// ObserverFactory 按流名称提供观察者（指标）
type ObserverFactory func(stream string) stream.Observer

// Option API 选项
type Option func(*options)

type options struct {
	logger        *zap.Logger
	level         *zap.AtomicLevel
	catalog       datablob.Catalog
	messageRate   float64
	messageSource stream.Source[*message.Message]
	blobSources   BlobSourceFactory
	observers     ObserverFactory
	verbosity     uint16
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		catalog:     datablob.DefaultCatalog(),
		messageRate: message.DefaultRate,
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLevel 绑定日志级别，SetVerbosity 通过它调整输出
func WithLevel(level zap.AtomicLevel) Option {
	return func(o *options) { o.level = &level }
}

// WithVerbosity 初始详细程度
func WithVerbosity(v uint16) Option {
	return func(o *options) { o.verbosity = v }
}

// WithCatalog 替换数据块源目录
func WithCatalog(c datablob.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithMessageRate 空设备日志消息速率
func WithMessageRate(r float64) Option {
	return func(o *options) { o.messageRate = r }
}

// WithMessageSource 日志消息改由 src 提供
func WithMessageSource(src stream.Source[*message.Message]) Option {
	return func(o *options) { o.messageSource = src }
}

// WithBlobSourceFactory 数据块源改由工厂提供
func WithBlobSourceFactory(f BlobSourceFactory) Option {
	return func(o *options) { o.blobSources = f }
}

// WithObserverFactory 为每个流挂接观察者
func WithObserverFactory(f ObserverFactory) Option {
	return func(o *options) { o.observers = f }
}
