package stream

import (
	"sync"
	"time"
)

// Callback 推模式回调。调用方需要的上下文由闭包携带。
// 事件所有权随调用转移给回调，回调返回后引擎不再持有该事件。
type Callback[T any] func(ev T)

// Mode 单个事件的投递去向
type Mode string

const (
	ModePush    Mode = "push"    // 交给已安装的回调
	ModePull    Mode = "pull"    // 进入待取队列
	ModeDropped Mode = "dropped" // 中介已关闭或故障，丢弃
)

// Mediator 投递中介：回调槽与待取队列互斥。
//
// 锁顺序固定为 cbMu -> qMu。拉模式入队在持有 cbMu 时完成，
// 因此 SetCallback 的清空一定发生在入队之后，推模式下队列恒为空。
// 用户回调在任何锁之外执行。
type Mediator[T any] struct {
	cbMu sync.Mutex
	cb   Callback[T]

	qMu    sync.Mutex
	queue  []T
	head   int
	notify chan struct{} // 入队/关闭/故障时 close 并替换，唤醒所有等待者
	closed bool
	err    error
}

// NewMediator 创建中介，初始为拉模式、空队列
func NewMediator[T any]() *Mediator[T] {
	return &Mediator[T]{notify: make(chan struct{})}
}

// SetCallback 安装或移除（nil）回调，并清空所有未取走的事件。
// 返回被清空的事件数。正在执行中的 Emit 仍使用它开始时读到的回调。
func (m *Mediator[T]) SetCallback(cb Callback[T]) int {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.cb = cb

	m.qMu.Lock()
	defer m.qMu.Unlock()
	n := m.lenLocked()
	m.resetLocked()
	return n
}

// Mode 当前投递模式
func (m *Mediator[T]) Mode() Mode {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	if m.cb != nil {
		return ModePush
	}
	return ModePull
}

// Emit 投递一个事件：有回调则同步调用，否则入队
func (m *Mediator[T]) Emit(ev T) Mode {
	cb, mode := m.route(ev)
	if cb != nil {
		cb(ev)
	}
	return mode
}

func (m *Mediator[T]) route(ev T) (Callback[T], Mode) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	if m.cb != nil {
		return m.cb, ModePush
	}

	m.qMu.Lock()
	defer m.qMu.Unlock()
	if m.closed || m.err != nil {
		return nil, ModeDropped
	}
	m.queue = append(m.queue, ev)
	m.wakeLocked()
	return nil, ModePull
}

// GetNext 取最早的事件。队列为空时最多等待 timeout；timeout<=0 只检查一次。
// 超时返回 ok=false、err=nil。关闭后等待者立即以超时返回；故障时返回故障错误。
func (m *Mediator[T]) GetNext(timeout time.Duration) (T, bool, error) {
	var zero T
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	expired := timeout <= 0
	for {
		m.qMu.Lock()
		if m.err != nil {
			err := m.err
			m.qMu.Unlock()
			return zero, false, err
		}
		if ev, ok := m.popLocked(); ok {
			m.qMu.Unlock()
			return ev, true, nil
		}
		if m.closed || expired {
			m.qMu.Unlock()
			return zero, false, nil
		}
		wait := m.notify
		m.qMu.Unlock()

		if timer == nil {
			timer = time.NewTimer(timeout)
		}
		select {
		case <-wait:
		case <-timer.C:
			// 超时后再检查一次队列
			expired = true
		}
	}
}

// Drain 一次取出最多 limit 个事件（limit<=0 表示全部），按生成顺序
func (m *Mediator[T]) Drain(limit int) ([]T, error) {
	m.qMu.Lock()
	defer m.qMu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	n := m.lenLocked()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		ev, _ := m.popLocked()
		out = append(out, ev)
	}
	return out, nil
}

// Pending 当前排队的事件数
func (m *Mediator[T]) Pending() int {
	m.qMu.Lock()
	defer m.qMu.Unlock()
	return m.lenLocked()
}

// Close 移除回调、丢弃缓冲事件并唤醒所有等待者，返回丢弃数
func (m *Mediator[T]) Close() int {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.cb = nil

	m.qMu.Lock()
	defer m.qMu.Unlock()
	n := m.lenLocked()
	m.resetLocked()
	if !m.closed {
		m.closed = true
		m.wakeLocked()
	}
	return n
}

// Fail 标记故障：后续 GetNext/Drain 返回 err，等待者立即被唤醒
func (m *Mediator[T]) Fail(err error) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.cb = nil

	m.qMu.Lock()
	defer m.qMu.Unlock()
	if m.err == nil {
		m.err = err
		m.wakeLocked()
	}
}

func (m *Mediator[T]) lenLocked() int {
	return len(m.queue) - m.head
}

func (m *Mediator[T]) popLocked() (T, bool) {
	var zero T
	if m.head >= len(m.queue) {
		return zero, false
	}
	ev := m.queue[m.head]
	m.queue[m.head] = zero
	m.head++
	switch {
	case m.head == len(m.queue):
		m.queue = m.queue[:0]
		m.head = 0
	case m.head >= 64 && m.head*2 >= len(m.queue):
		n := copy(m.queue, m.queue[m.head:])
		clear(m.queue[n:])
		m.queue = m.queue[:n]
		m.head = 0
	}
	return ev, true
}

func (m *Mediator[T]) resetLocked() {
	clear(m.queue)
	m.queue = m.queue[:0]
	m.head = 0
}

func (m *Mediator[T]) wakeLocked() {
	close(m.notify)
	m.notify = make(chan struct{})
}
