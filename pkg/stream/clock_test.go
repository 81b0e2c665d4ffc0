package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeval(t *testing.T) {
	ts := time.Date(2020, 1, 18, 10, 30, 0, 123456789, time.UTC)
	sec, usec := ToTimeval(ts)
	assert.Equal(t, ts.Unix(), sec)
	assert.Equal(t, int64(123456), usec)
	assert.True(t, FromTimeval(sec, usec).Equal(ts.Truncate(time.Microsecond)))
}

func TestSystemClock(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, 0, now.Nanosecond()%1000, "应截断到微秒")
}

func TestGenerator(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	g, err := Generate(200, ClockFunc(func() time.Time { return fixed }), func(seq uint64, at time.Time) uint64 {
		return seq
	})
	assert.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, g.Interval())
	assert.Equal(t, 200.0, g.Rate())

	start := time.Now()
	v, err := g.Next(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond, "首个事件应在一个周期之后")

	_, err = Generate[int](1, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
