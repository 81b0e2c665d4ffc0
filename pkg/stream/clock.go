package stream

import "time"

// Clock 时间源，生成事件时间戳与节拍计算共用
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟：UTC，截断到微秒
type SystemClock struct{}

// Now 返回当前 UTC 时间（微秒精度）
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ClockFunc 函数适配为 Clock
type ClockFunc func() time.Time

// Now 实现 Clock
func (f ClockFunc) Now() time.Time { return f() }

// ToTimeval 拆分为整秒 + 微秒余数
func ToTimeval(t time.Time) (sec, usec int64) {
	us := t.UnixMicro()
	sec = us / 1_000_000
	usec = us % 1_000_000
	if usec < 0 {
		sec--
		usec += 1_000_000
	}
	return sec, usec
}

// FromTimeval 由整秒 + 微秒还原 UTC 时间
func FromTimeval(sec, usec int64) time.Time {
	return time.UnixMicro(sec*1_000_000 + usec).UTC()
}
