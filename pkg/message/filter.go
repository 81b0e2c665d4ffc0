package message

import "sync/atomic"

// SeverityFilter 最低级别过滤器。阈值修改只影响之后产生的消息。
type SeverityFilter struct {
	min atomic.Int32
}

// NewSeverityFilter 创建过滤器，默认放行全部
func NewSeverityFilter() *SeverityFilter {
	f := &SeverityFilter{}
	f.min.Store(int32(LevelInfo))
	return f
}

// Admit 级别不低于阈值时放行
func (f *SeverityFilter) Admit(m *Message) bool {
	return m.Level() >= Level(f.min.Load())
}

// SetMinimum 设置阈值
func (f *SeverityFilter) SetMinimum(l Level) {
	f.min.Store(int32(l))
}

// Minimum 当前阈值
func (f *SeverityFilter) Minimum() Level {
	return Level(f.min.Load())
}
