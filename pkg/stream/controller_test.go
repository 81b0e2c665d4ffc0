package stream

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource 由测试逐个喂入事件的来源
type chanSource struct {
	ch     chan int
	errs   chan error
	resets atomic.Int32
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan int), errs: make(chan error, 1)}
}

func (s *chanSource) Next(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-s.errs:
		return 0, err
	case v := <-s.ch:
		return v, nil
	}
}

func (s *chanSource) Reset(time.Time) { s.resets.Add(1) }

// feed 在超时内把事件交给生产者
func (s *chanSource) feed(t *testing.T, v int) {
	t.Helper()
	select {
	case s.ch <- v:
	case <-time.After(time.Second):
		t.Fatalf("producer did not accept event %d", v)
	}
}

type countingObserver struct {
	generated, filtered, push, pull, flushed, discarded, faults, sourceErrs atomic.Int64
}

func (o *countingObserver) Generated() { o.generated.Add(1) }
func (o *countingObserver) Filtered()  { o.filtered.Add(1) }
func (o *countingObserver) Delivered(m Mode) {
	switch m {
	case ModePush:
		o.push.Add(1)
	case ModePull:
		o.pull.Add(1)
	}
}
func (o *countingObserver) Flushed(n int)         { o.flushed.Add(int64(n)) }
func (o *countingObserver) Discarded(n int)       { o.discarded.Add(int64(n)) }
func (o *countingObserver) SourceError()          { o.sourceErrs.Add(1) }
func (o *countingObserver) Faulted()              { o.faults.Add(1) }
func (o *countingObserver) StreamingChanged(bool) {}
func (o *countingObserver) QueueDepth(int)        {}

type stamped struct {
	seq uint64
	at  time.Time
}

func newStampedController(t *testing.T, r float64) *Controller[stamped] {
	t.Helper()
	c, err := NewGenerated(Config{Name: "test"}, r, SystemClock{}, func(seq uint64, at time.Time) stamped {
		return stamped{seq: seq, at: at}
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestController_InitialState(t *testing.T) {
	c := newStampedController(t, 100)
	assert.Equal(t, StateStopped, c.State())
	assert.False(t, c.Streaming())
	assert.Equal(t, ModePull, c.Mode())
	assert.NotEmpty(t, c.ID())

	time.Sleep(50 * time.Millisecond)
	_, ok, err := c.GetNext(0)
	require.NoError(t, err)
	assert.False(t, ok, "未开始推流时不应产生事件")
}

func TestController_InvalidRate(t *testing.T) {
	gen := func(uint64, time.Time) int { return 0 }
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewGenerated(Config{}, r, nil, gen, nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "rate=%v", r)
	}

	_, err := NewController[int](Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestController_RateScenario(t *testing.T) {
	c := newStampedController(t, 10)
	require.NoError(t, c.SetStreaming(true))
	time.Sleep(1050 * time.Millisecond)
	require.NoError(t, c.SetStreaming(false))

	var got []stamped
	for {
		ev, ok, err := c.GetNext(0)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, ev)
	}

	require.InDelta(t, 10, len(got), 1, "1.05s 内 10/s 应产生约 10 个事件")
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].seq, got[i-1].seq)
		assert.True(t, got[i].at.After(got[i-1].at), "时间戳应单调递增")
	}
	mean := got[len(got)-1].at.Sub(got[0].at) / time.Duration(len(got)-1)
	assert.InDelta(t, float64(100*time.Millisecond), float64(mean), float64(25*time.Millisecond))
}

func TestController_SetStreamingIdempotent(t *testing.T) {
	src := newChanSource()
	c, err := NewController[int](Config{}, src, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetStreaming(true))
	require.NoError(t, c.SetStreaming(true))
	assert.Equal(t, StateRunning, c.State())

	require.NoError(t, c.SetStreaming(false))
	require.NoError(t, c.SetStreaming(false))
	assert.Equal(t, StateStopped, c.State())
}

func TestController_StopKeepsQueuedEvents(t *testing.T) {
	src := newChanSource()
	c, err := NewController[int](Config{}, src, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetStreaming(true))
	for i := 1; i <= 3; i++ {
		src.feed(t, i)
	}
	require.Eventually(t, func() bool { return c.Pending() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.SetStreaming(false))

	// 停止后来源不再被读取
	select {
	case src.ch <- 99:
		t.Fatal("停止后生产者仍在读取来源")
	case <-time.After(50 * time.Millisecond):
	}

	for i := 1; i <= 3; i++ {
		ev, ok, err := c.GetNext(0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, ev)
	}
	_, ok, _ := c.GetNext(0)
	assert.False(t, ok)
}

func TestController_RestartResetsCadence(t *testing.T) {
	src := newChanSource()
	c, err := NewController[int](Config{}, src, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 1)
	require.NoError(t, c.SetStreaming(false))
	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 2)

	assert.Equal(t, int32(2), src.resets.Load())
}

func TestController_CallbackMode(t *testing.T) {
	src := newChanSource()
	obs := &countingObserver{}
	c, err := NewController[int](Config{Observer: obs}, src, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 1)
	src.feed(t, 2)
	require.Eventually(t, func() bool { return c.Pending() == 2 }, time.Second, 5*time.Millisecond)

	var mu sync.Mutex
	var got []int
	require.NoError(t, c.SetCallback(func(ev int) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}))
	assert.Equal(t, int64(2), obs.flushed.Load())

	src.feed(t, 3)
	src.feed(t, 4)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{3, 4}, got)
	mu.Unlock()
	assert.Equal(t, 0, c.Pending())

	_, ok, err := c.GetNext(0)
	require.NoError(t, err)
	assert.False(t, ok)

	// 移除回调后不会取回积压前的旧事件
	require.NoError(t, c.SetCallback(nil))
	_, ok, _ = c.GetNext(0)
	assert.False(t, ok)
}

func TestController_AdmitFilter(t *testing.T) {
	src := newChanSource()
	obs := &countingObserver{}
	c, err := NewController(Config{Observer: obs}, Source[int](src), func(ev int) bool { return ev%2 == 0 })
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetStreaming(true))
	for i := 1; i <= 6; i++ {
		src.feed(t, i)
	}
	require.Eventually(t, func() bool { return obs.pull.Load() == 3 && obs.filtered.Load() == 3 }, time.Second, 5*time.Millisecond)

	evs, err := c.Drain(0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, evs)
	assert.Equal(t, int64(3), obs.filtered.Load())
}

func TestController_CloseDuringGetNext(t *testing.T) {
	c := newStampedController(t, 1)

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		_, ok, err := c.GetNext(5 * time.Second)
		done <- result{ok, err}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case r := <-done:
		assert.NoError(t, r.err)
		assert.False(t, r.ok)
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("Close 导致 GetNext 死锁")
	}

	_, _, err := c.GetNext(0)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, c.SetStreaming(true), ErrInvalidHandle)
	assert.ErrorIs(t, c.SetCallback(nil), ErrInvalidHandle)
	assert.NoError(t, c.Close(), "重复 Close 为空操作")
	assert.Equal(t, StateClosed, c.State())
}

func TestController_CloseDiscardsBuffered(t *testing.T) {
	src := newChanSource()
	obs := &countingObserver{}
	c, err := NewController[int](Config{Observer: obs}, src, nil)
	require.NoError(t, err)

	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 1)
	src.feed(t, 2)
	require.Eventually(t, func() bool { return c.Pending() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Equal(t, int64(2), obs.discarded.Load())
	assert.Equal(t, 0, c.Pending())
}

func TestController_CallbackPanicFaults(t *testing.T) {
	src := newChanSource()
	obs := &countingObserver{}
	c, err := NewController[int](Config{Observer: obs}, src, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetCallback(func(int) { panic("consumer bug") }))
	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 1)

	require.Eventually(t, func() bool { return c.State() == StateFaulted }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Err(), ErrInternalFault)
	_, _, err = c.GetNext(time.Second)
	assert.ErrorIs(t, err, ErrInternalFault)
	assert.ErrorIs(t, c.SetCallback(nil), ErrInternalFault)
	assert.ErrorIs(t, c.SetStreaming(false), ErrInternalFault)
	assert.Equal(t, int64(1), obs.faults.Load())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Err(), ErrInvalidHandle)
}

func TestController_FaultWakesPoller(t *testing.T) {
	src := newChanSource()
	c, err := NewController[int](Config{}, src, func(int) bool { panic("filter bug") })
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetStreaming(true))

	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetNext(5 * time.Second)
		done <- err
	}()
	time.Sleep(30 * time.Millisecond)
	src.feed(t, 1)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInternalFault)
	case <-time.After(2 * time.Second):
		t.Fatal("故障后 GetNext 仍在等待")
	}
}

func TestController_SourceErrors(t *testing.T) {
	t.Run("临时错误重试", func(t *testing.T) {
		src := newChanSource()
		obs := &countingObserver{}
		c, err := NewController[int](Config{Observer: obs, RetryBackoff: 10 * time.Millisecond}, src, nil)
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.SetStreaming(true))
		src.errs <- errors.New("link down")
		require.Eventually(t, func() bool { return obs.sourceErrs.Load() == 1 }, time.Second, 5*time.Millisecond)
		src.feed(t, 5)

		ev, ok, err := c.GetNext(time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 5, ev)
		assert.Equal(t, int64(1), obs.sourceErrs.Load())
		assert.Equal(t, StateRunning, c.State())
	})

	t.Run("内部故障", func(t *testing.T) {
		src := newChanSource()
		c, err := NewController[int](Config{}, src, nil)
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.SetStreaming(true))
		src.errs <- errors.Join(ErrInternalFault, errors.New("decoder state corrupted"))

		require.Eventually(t, func() bool { return c.State() == StateFaulted }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, c.Err(), ErrInternalFault)
	})
}

func TestController_StopDuringFilter(t *testing.T) {
	src := newChanSource()
	obs := &countingObserver{}
	var c *Controller[int]
	admit := func(v int) bool {
		if v == 1 {
			assert.NoError(t, c.SetStreaming(false))
		}
		return true
	}
	c, err := NewController[int](Config{Observer: obs}, src, admit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 1)
	require.Eventually(t, func() bool { return c.State() == StateStopped }, time.Second, time.Millisecond)

	// 过滤期间停止的事件不投递
	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 2)
	v, ok, err := c.GetNext(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Zero(t, c.Pending())
	assert.Equal(t, int64(1), obs.pull.Load())
}

func TestController_CloseFromCallback(t *testing.T) {
	src := newChanSource()
	c, err := NewController[int](Config{}, src, nil)
	require.NoError(t, err)

	errs := make(chan error, 1)
	require.NoError(t, c.SetCallback(func(int) { errs <- c.Close() }))
	require.NoError(t, c.SetStreaming(true))
	src.feed(t, 1)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrCloseFromCallback)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	case <-time.After(time.Second):
		t.Fatal("Close inside the callback did not return")
	}
	assert.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Err(), ErrInvalidHandle)
}

func TestGoroutineID(t *testing.T) {
	id := goroutineID()
	assert.NotZero(t, id)
	assert.Equal(t, id, goroutineID())

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	assert.NotEqual(t, id, <-other)
}

func TestController_IndependentInstances(t *testing.T) {
	slow := newChanSource()
	a, err := NewController[int](Config{Name: "a"}, slow, nil)
	require.NoError(t, err)
	defer a.Close()

	block := make(chan struct{})
	require.NoError(t, a.SetCallback(func(int) { <-block }))
	require.NoError(t, a.SetStreaming(true))
	slow.feed(t, 1)

	b := newStampedController(t, 100)
	require.NoError(t, b.SetStreaming(true))
	_, ok, err := b.GetNext(time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "一个控制器的慢回调不应影响另一个控制器")

	close(block)
}
