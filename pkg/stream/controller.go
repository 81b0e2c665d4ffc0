package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State 控制器状态
type State int32

const (
	StateStopped State = iota // 初始状态，不产生事件
	StateRunning              // 推流中
	StateFaulted              // 生产者内部异常，不可恢复
	StateClosed               // 已销毁
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Admit 过滤钩子：返回 false 的事件在进入中介前丢弃
type Admit[T any] func(ev T) bool

// Config 控制器配置
type Config struct {
	Name         string        // 流名称，用于日志与指标
	Logger       *zap.Logger   // 为空时不输出
	Observer     Observer      // 为空时使用 NopObserver
	RetryBackoff time.Duration // 来源返回临时错误后的等待时间，默认 1s
}

// Controller 流控制器：持有生产者协程与投递中介。
// 生产者协程从构造一直运行到 Close，推流状态只决定是否产生事件。
type Controller[T any] struct {
	id      string
	name    string
	log     *zap.Logger
	obs     Observer
	backoff time.Duration

	src   Source[T]
	admit Admit[T]
	med   *Mediator[T]

	mu        sync.Mutex
	state     State
	fault     error
	runGen    uint64
	runCtx    context.Context
	runCancel context.CancelFunc
	changed   chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	producer atomic.Uint64 // 生产者协程 ID，回调都在该协程上运行
}

// NewController 创建控制器并启动生产者协程，初始状态为 Stopped、拉模式
func NewController[T any](cfg Config, src Source[T], admit Admit[T]) (*Controller[T], error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	id := uuid.NewString()
	if cfg.Name == "" {
		cfg.Name = id
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		id:      id,
		name:    cfg.Name,
		log:     cfg.Logger.With(zap.String("stream", cfg.Name), zap.String("stream_id", id)),
		obs:     cfg.Observer,
		backoff: cfg.RetryBackoff,
		src:     src,
		admit:   admit,
		med:     NewMediator[T](),
		state:   StateStopped,
		changed: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.run()
	c.log.Debug("stream controller created")
	return c, nil
}

// NewGenerated 以定速生成器作为来源创建控制器
func NewGenerated[T any](cfg Config, ratePerSec float64, clock Clock, gen GenerateFunc[T], admit Admit[T]) (*Controller[T], error) {
	src, err := Generate(ratePerSec, clock, gen)
	if err != nil {
		return nil, err
	}
	return NewController[T](cfg, src, admit)
}

// ID 控制器唯一标识
func (c *Controller[T]) ID() string { return c.id }

// Name 流名称
func (c *Controller[T]) Name() string { return c.name }

// State 当前状态
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Streaming 是否处于推流状态
func (c *Controller[T]) Streaming() bool {
	return c.State() == StateRunning
}

// Err 故障原因；未故障返回 nil，已关闭返回 ErrInvalidHandle
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked()
}

// SetStreaming 开始/停止推流。重复设置同一状态为空操作。
// 停止不会清空已排队事件。SetStreaming(false) 返回后不再有事件入队或开始回调；
// 返回前已开始的那次回调会执行完。
func (c *Controller[T]) SetStreaming(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(); err != nil {
		return err
	}
	if on == (c.state == StateRunning) {
		return nil
	}

	if on {
		c.runCtx, c.runCancel = context.WithCancel(c.ctx)
		c.runGen++
		c.state = StateRunning
	} else {
		c.runCancel()
		c.state = StateStopped
	}
	c.signalLocked()
	c.obs.StreamingChanged(on)
	c.log.Debug("streaming state changed", zap.Bool("running", on))
	return nil
}

// SetCallback 安装推模式回调；cb 为 nil 时回到拉模式。
// 无论安装还是移除，之前排队未取的事件都会被丢弃。
func (c *Controller[T]) SetCallback(cb Callback[T]) error {
	if err := c.Err(); err != nil {
		return err
	}
	n := c.med.SetCallback(cb)
	if n > 0 {
		c.obs.Flushed(n)
		c.log.Debug("pending events flushed on mode switch", zap.Int("count", n))
	}
	c.obs.QueueDepth(0)
	return nil
}

// GetNext 拉模式取下一个事件，最多等待 timeout。
// 超时返回 ok=false、err=nil；安装回调期间总是超时。
func (c *Controller[T]) GetNext(timeout time.Duration) (T, bool, error) {
	var zero T
	if err := c.Err(); err != nil {
		return zero, false, err
	}
	ev, ok, err := c.med.GetNext(timeout)
	if err != nil {
		return zero, false, err
	}
	if ok {
		c.obs.QueueDepth(c.med.Pending())
	}
	return ev, ok, nil
}

// Drain 一次取出最多 limit 个排队事件（limit<=0 表示全部）
func (c *Controller[T]) Drain(limit int) ([]T, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	out, err := c.med.Drain(limit)
	if err != nil {
		return nil, err
	}
	c.obs.QueueDepth(c.med.Pending())
	return out, nil
}

// Pending 排队中的事件数
func (c *Controller[T]) Pending() int {
	return c.med.Pending()
}

// Mode 当前投递模式
func (c *Controller[T]) Mode() Mode {
	return c.med.Mode()
}

// Close 销毁控制器：唤醒等待中的 GetNext、丢弃缓冲事件、等待生产者协程退出。
// 重复调用为空操作。在回调内调用返回 ErrCloseFromCallback，控制器不受影响。
func (c *Controller[T]) Close() error {
	if c.onProducer() {
		return ErrCloseFromCallback
	}
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	wasRunning := c.state == StateRunning
	c.state = StateClosed
	if c.runCancel != nil {
		c.runCancel()
	}
	c.signalLocked()
	c.mu.Unlock()

	c.cancel()
	n := c.med.Close()
	<-c.done

	if n > 0 {
		c.obs.Discarded(n)
	}
	c.obs.QueueDepth(0)
	if wasRunning {
		c.obs.StreamingChanged(false)
	}
	c.log.Debug("stream controller closed", zap.Int("discarded", n))
	return nil
}

func (c *Controller[T]) checkLocked() error {
	switch c.state {
	case StateClosed:
		return ErrInvalidHandle
	case StateFaulted:
		return c.fault
	}
	return nil
}

func (c *Controller[T]) signalLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// run 生产者协程主循环
func (c *Controller[T]) run() {
	defer close(c.done)
	c.producer.Store(goroutineID())

	var lastGen uint64
	for {
		runCtx, gen, ok := c.awaitRunning()
		if !ok {
			return
		}
		fresh := gen != lastGen
		lastGen = gen
		if !c.step(runCtx, gen, fresh) {
			return
		}
	}
}

// awaitRunning 阻塞直到进入 Running；关闭或故障时返回 false
func (c *Controller[T]) awaitRunning() (context.Context, uint64, bool) {
	for {
		c.mu.Lock()
		switch c.state {
		case StateRunning:
			ctx, gen := c.runCtx, c.runGen
			c.mu.Unlock()
			return ctx, gen, true
		case StateClosed, StateFaulted:
			c.mu.Unlock()
			return nil, 0, false
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-c.ctx.Done():
			return nil, 0, false
		}
	}
}

// step 产生并投递一个事件；返回 false 表示生产者应退出
func (c *Controller[T]) step(runCtx context.Context, gen uint64, fresh bool) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			c.markFaulted(fmt.Errorf("%w: panic in producer: %v", ErrInternalFault, r))
			alive = false
		}
	}()

	if fresh {
		if r, ok := c.src.(Resetter); ok {
			r.Reset(time.Now())
		}
	}

	ev, err := c.src.Next(runCtx)
	if err != nil {
		if c.ctx.Err() != nil {
			return false
		}
		if runCtx.Err() != nil {
			return true
		}
		if errors.Is(err, ErrInternalFault) {
			c.markFaulted(err)
			return false
		}
		c.obs.SourceError()
		c.log.Warn("stream source error, retrying", zap.Error(err), zap.Duration("backoff", c.backoff))
		select {
		case <-time.After(c.backoff):
		case <-runCtx.Done():
		}
		return true
	}
	// 停止之后才到达的事件不再投递
	if runCtx.Err() != nil {
		return c.ctx.Err() == nil
	}

	c.obs.Generated()
	if c.admit != nil && !c.admit(ev) {
		c.obs.Filtered()
		return true
	}

	// 过滤期间可能已停止，入队/取回调与 SetStreaming 互斥
	c.mu.Lock()
	if c.state != StateRunning || c.runGen != gen {
		c.mu.Unlock()
		return c.ctx.Err() == nil
	}
	cb, mode := c.med.route(ev)
	c.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
	c.obs.Delivered(mode)
	if mode == ModePull {
		c.obs.QueueDepth(c.med.Pending())
	}
	return true
}

func (c *Controller[T]) markFaulted(err error) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateFaulted {
		c.mu.Unlock()
		return
	}
	wasRunning := c.state == StateRunning
	c.state = StateFaulted
	c.fault = err
	if c.runCancel != nil {
		c.runCancel()
	}
	c.signalLocked()
	c.mu.Unlock()

	c.med.Fail(err)
	c.obs.Faulted()
	if wasRunning {
		c.obs.StreamingChanged(false)
	}
	c.log.Error("stream producer faulted", zap.Error(err))
}

func (c *Controller[T]) onProducer() bool {
	id := c.producer.Load()
	return id != 0 && id == goroutineID()
}
