package datablob

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// PayloadSize 空设备每个数据块的字节数
const PayloadSize = 256

// StreamCallback 推模式回调：数据块归回调所有
type StreamCallback func(blob *DataBlob)

var instances atomic.Uint64

// Source 一个打开的数据块源
type Source struct {
	desc   Description
	stream string
	props  StreamProperties
	ctrl   *stream.Controller[*DataBlob]
}

// NullGenerator 空设备生成函数：每块为 0..255 的递增字节
func NullGenerator() stream.GenerateFunc[*DataBlob] {
	ramp := make([]byte, PayloadSize)
	for i := range ramp {
		ramp[i] = byte(i)
	}
	return func(_ uint64, at time.Time) *DataBlob {
		return NewDataBlob(at, ramp)
	}
}

// Open 打开目录中名为 name 的源（空名称为第一个），由空设备按 props.Rate 产生数据块
func Open(cat Catalog, props StreamProperties, name string, cfg stream.Config) (*Source, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	src, err := stream.Generate(props.Rate, stream.SystemClock{}, NullGenerator())
	if err != nil {
		return nil, err
	}
	return OpenWithSource(cat, props, name, cfg, src)
}

// OpenWithSource 打开源，数据块来自调用方提供的来源（如设备中继）
func OpenWithSource(cat Catalog, props StreamProperties, name string, cfg stream.Config, src stream.Source[*DataBlob]) (*Source, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	desc, err := cat.Resolve(name)
	if err != nil {
		return nil, err
	}

	streamName := fmt.Sprintf("%s#%d", desc.Name, instances.Add(1)-1)
	if cfg.Name == "" {
		cfg.Name = streamName
	}
	ctrl, err := stream.NewController[*DataBlob](cfg, src, nil)
	if err != nil {
		return nil, err
	}
	return &Source{desc: desc, stream: streamName, props: props, ctrl: ctrl}, nil
}

// Info 源描述
func (s *Source) Info() Description { return s.desc }

// StreamName 本实例唯一的流名称
func (s *Source) StreamName() string { return s.stream }

// Properties 打开时的流属性
func (s *Source) Properties() StreamProperties { return s.props }

// SetStreamingState 开始/停止产生数据块
func (s *Source) SetStreamingState(running bool) error {
	return s.ctrl.SetStreaming(running)
}

// SetStreamCallback 安装回调（nil 回到拉模式），之前排队的数据块被丢弃
func (s *Source) SetStreamCallback(cb StreamCallback) error {
	if cb == nil {
		return s.ctrl.SetCallback(nil)
	}
	return s.ctrl.SetCallback(func(b *DataBlob) { cb(b) })
}

// GetNextBlob 取下一个数据块，最多等待 timeout；超时返回 ok=false
func (s *Source) GetNextBlob(timeout time.Duration) (*DataBlob, bool, error) {
	return s.ctrl.GetNext(timeout)
}

// Pending 排队中的数据块数
func (s *Source) Pending() int { return s.ctrl.Pending() }

// Err 源故障或已关闭时返回对应错误
func (s *Source) Err() error { return s.ctrl.Err() }

// Controller 底层控制器
func (s *Source) Controller() *stream.Controller[*DataBlob] { return s.ctrl }

// Close 停止生产者并丢弃缓冲数据块
func (s *Source) Close() error { return s.ctrl.Close() }
