// Package message 设备诊断日志消息流：带严重级别的文本事件，
// 在进入投递中介之前按最低级别过滤。
package message

import (
	"time"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// Message 一条日志消息，构造后不可变
type Message struct {
	value string
	at    time.Time
	level Level
}

// NewMessage 构造消息
func NewMessage(value string, at time.Time, level Level) *Message {
	return &Message{value: value, at: at.UTC(), level: level}
}

// Value 消息文本
func (m *Message) Value() string { return m.value }

// Time 时间戳
func (m *Message) Time() time.Time { return m.at }

// Timeval 时间戳的整秒 + 微秒表示
func (m *Message) Timeval() (sec, usec int64) {
	return stream.ToTimeval(m.at)
}

// Level 严重级别
func (m *Message) Level() Level { return m.level }
