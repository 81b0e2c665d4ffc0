// Package sdk 设备 SDK 入口：API 持有日志消息流与打开的数据块源，
// 关闭 API 时一并关闭它们。
package sdk

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// Params 连接参数，SDK 只保存不解释
type Params struct {
	User        string
	Credentials []byte
}

// Version SDK 版本
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CurrentVersion 当前 SDK 版本
var CurrentVersion = Version{Major: 0, Minor: 1, Patch: 0}

// API 设备连接句柄
type API struct {
	params    Params
	opts      options
	log       *zap.Logger
	verbosity atomic.Uint32

	messages *message.Stream

	mu      sync.Mutex
	sources []*datablob.Source
	closed  bool
}

// Open 创建 API 并启动日志消息流（初始未推流）
func Open(params Params, opts ...Option) (*API, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.catalog.Validate(); err != nil {
		return nil, err
	}

	a := &API{
		params: Params{User: params.User, Credentials: append([]byte(nil), params.Credentials...)},
		opts:   o,
		log:    o.logger.With(zap.String("component", "sdk")),
	}
	a.applyVerbosity(o.verbosity)

	cfg := a.streamConfig("messages")
	var err error
	if o.messageSource != nil {
		a.messages, err = message.NewWithSource(o.messageSource, cfg)
	} else {
		a.messages, err = message.New(o.messageRate, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open log message stream: %w", err)
	}

	a.log.Info("sdk opened",
		zap.String("user", params.User),
		zap.String("version", CurrentVersion.String()),
		zap.Int("data_blob_sources", len(o.catalog)))
	return a, nil
}

func (a *API) streamConfig(name string) stream.Config {
	cfg := stream.Config{Name: name, Logger: a.opts.logger}
	if a.opts.observers != nil {
		cfg.Observer = a.opts.observers(name)
	}
	return cfg
}

func (a *API) check() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return stream.ErrInvalidHandle
	}
	return nil
}

// User 连接用户名
func (a *API) User() string { return a.params.User }

// Credentials 连接凭据副本
func (a *API) Credentials() []byte {
	return append([]byte(nil), a.params.Credentials...)
}

// Version SDK 版本
func (a *API) Version() Version { return CurrentVersion }

// CurrentSystemTime 设备当前时间（UTC，微秒精度）
func (a *API) CurrentSystemTime() time.Time {
	return stream.SystemClock{}.Now()
}

// Verbosity 当前详细程度
func (a *API) Verbosity() uint16 {
	return uint16(a.verbosity.Load())
}

// SetVerbosity 调整详细程度：0 静默，1-100 错误，101-200 警告，201 以上调试
func (a *API) SetVerbosity(v uint16) error {
	if err := a.check(); err != nil {
		return err
	}
	a.applyVerbosity(v)
	a.log.Debug("verbosity changed", zap.Uint16("verbosity", v))
	return nil
}

func (a *API) applyVerbosity(v uint16) {
	a.verbosity.Store(uint32(v))
	if a.opts.level != nil {
		a.opts.level.SetLevel(VerbosityLevel(v))
	}
}

// VerbosityLevel 详细程度对应的日志级别
func VerbosityLevel(v uint16) zapcore.Level {
	switch {
	case v == 0:
		return zapcore.FatalLevel + 1
	case v <= 100:
		return zapcore.ErrorLevel
	case v <= 200:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

// AvailableDataBlobSources 设备上可用的数据块源
func (a *API) AvailableDataBlobSources() ([]datablob.Description, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	return append([]datablob.Description(nil), a.opts.catalog...), nil
}

// OpenDataBlobSource 打开名为 name 的数据块源（空名称为第一个），随 API 一起关闭
func (a *API) OpenDataBlobSource(props datablob.StreamProperties, name string) (*datablob.Source, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	desc, err := a.opts.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	cfg := a.streamConfig(desc.Name)
	cfg.Name = ""

	var src *datablob.Source
	var relay stream.Source[*datablob.DataBlob]
	if a.opts.blobSources != nil {
		if relay, err = a.opts.blobSources(desc, props); err != nil {
			return nil, fmt.Errorf("data blob source %s: %w", desc.Name, err)
		}
	}
	if relay != nil {
		src, err = datablob.OpenWithSource(a.opts.catalog, props, desc.Name, cfg, relay)
	} else {
		src, err = datablob.Open(a.opts.catalog, props, desc.Name, cfg)
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = src.Close()
		return nil, stream.ErrInvalidHandle
	}
	a.sources = append(a.sources, src)
	a.mu.Unlock()

	a.log.Info("data blob source opened",
		zap.String("source", desc.Name),
		zap.String("stream", src.StreamName()),
		zap.Float64("rate", props.Rate))
	return src, nil
}

// Sources 仍处于打开状态的数据块源
func (a *API) Sources() []*datablob.Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	live := a.sources[:0]
	for _, s := range a.sources {
		if !errors.Is(s.Err(), stream.ErrInvalidHandle) {
			live = append(live, s)
		}
	}
	a.sources = live
	return append([]*datablob.Source(nil), live...)
}

// Messages 日志消息流
func (a *API) Messages() *message.Stream { return a.messages }

// SetLogMessageStreamingState 开始/停止日志消息
func (a *API) SetLogMessageStreamingState(running bool) error {
	if err := a.check(); err != nil {
		return err
	}
	return a.messages.SetStreamingState(running)
}

// SetLogMessageCallback 安装日志消息回调（nil 回到拉模式）
func (a *API) SetLogMessageCallback(cb message.Callback) error {
	if err := a.check(); err != nil {
		return err
	}
	return a.messages.SetCallback(cb)
}

// GetNextLogMessage 取下一条日志消息，最多等待 timeout
func (a *API) GetNextLogMessage(timeout time.Duration) (*message.Message, bool, error) {
	if err := a.check(); err != nil {
		return nil, false, err
	}
	return a.messages.GetNext(timeout)
}

// GetPendingLogMessages 取出最多 limit 条排队的日志消息（limit<=0 表示全部）
func (a *API) GetPendingLogMessages(limit int) ([]*message.Message, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	return a.messages.GetPending(limit)
}

// SetLogMessageMinimumLevel 设置日志消息最低级别
func (a *API) SetLogMessageMinimumLevel(l message.Level) error {
	if err := a.check(); err != nil {
		return err
	}
	return a.messages.SetMinimumLevel(l)
}

// Close 关闭日志消息流与全部数据块源，等待其生产者退出。重复调用为空操作。
func (a *API) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sources := a.sources
	a.sources = nil
	a.mu.Unlock()

	var errs []error
	for _, s := range sources {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.messages.Close(); err != nil {
		errs = append(errs, err)
	}
	a.log.Info("sdk closed", zap.Int("data_blob_sources", len(sources)))
	return errors.Join(errs...)
}
