package message

import (
	"time"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// DefaultRate 空设备日志消息的产生速率（条/秒）
const DefaultRate = 10.0

// NullText 空设备生成的消息文本
const NullText = "value of the message"

// Callback 推模式回调
type Callback func(m *Message)

// Stream 日志消息流
type Stream struct {
	filter *SeverityFilter
	ctrl   *stream.Controller[*Message]
}

// NullGenerator 空设备生成函数：级别按 Info→Warning→Error→Critical 循环
func NullGenerator() stream.GenerateFunc[*Message] {
	return func(seq uint64, at time.Time) *Message {
		return NewMessage(NullText, at, Levels[(seq-1)%uint64(len(Levels))])
	}
}

// New 创建由空设备按 ratePerSec 产生消息的流
func New(ratePerSec float64, cfg stream.Config) (*Stream, error) {
	src, err := stream.Generate(ratePerSec, stream.SystemClock{}, NullGenerator())
	if err != nil {
		return nil, err
	}
	return NewWithSource(src, cfg)
}

// NewWithSource 创建消息来自 src 的流（如设备中继）
func NewWithSource(src stream.Source[*Message], cfg stream.Config) (*Stream, error) {
	if cfg.Name == "" {
		cfg.Name = "messages"
	}
	f := NewSeverityFilter()
	ctrl, err := stream.NewController(cfg, src, stream.Admit[*Message](f.Admit))
	if err != nil {
		return nil, err
	}
	return &Stream{filter: f, ctrl: ctrl}, nil
}

// SetStreamingState 开始/停止产生消息
func (s *Stream) SetStreamingState(running bool) error {
	return s.ctrl.SetStreaming(running)
}

// SetCallback 安装回调（nil 回到拉模式），之前排队的消息被丢弃
func (s *Stream) SetCallback(cb Callback) error {
	if cb == nil {
		return s.ctrl.SetCallback(nil)
	}
	return s.ctrl.SetCallback(func(m *Message) { cb(m) })
}

// GetNext 取下一条消息，最多等待 timeout；超时返回 ok=false
func (s *Stream) GetNext(timeout time.Duration) (*Message, bool, error) {
	return s.ctrl.GetNext(timeout)
}

// GetPending 一次取出最多 limit 条排队消息（limit<=0 表示全部），不等待
func (s *Stream) GetPending(limit int) ([]*Message, error) {
	return s.ctrl.Drain(limit)
}

// SetMinimumLevel 设置最低级别，对之后产生的消息生效；已排队的消息不受影响
func (s *Stream) SetMinimumLevel(l Level) error {
	if err := s.ctrl.Err(); err != nil {
		return err
	}
	s.filter.SetMinimum(l)
	return nil
}

// MinimumLevel 当前最低级别
func (s *Stream) MinimumLevel() Level { return s.filter.Minimum() }

// Pending 排队中的消息数
func (s *Stream) Pending() int { return s.ctrl.Pending() }

// Err 故障或已关闭时返回对应错误
func (s *Stream) Err() error { return s.ctrl.Err() }

// Controller 底层控制器
func (s *Stream) Controller() *stream.Controller[*Message] { return s.ctrl }

// Close 停止生产者并丢弃缓冲消息
func (s *Stream) Close() error { return s.ctrl.Close() }
