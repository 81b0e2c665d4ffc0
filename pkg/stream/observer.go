package stream

// Observer 控制器运行指标钩子，实现需并发安全且不阻塞
type Observer interface {
	Generated()
	Filtered()
	Delivered(mode Mode)
	Flushed(n int)
	Discarded(n int)
	SourceError()
	Faulted()
	StreamingChanged(on bool)
	QueueDepth(n int)
}

// NopObserver 空实现
type NopObserver struct{}

func (NopObserver) Generated()            {}
func (NopObserver) Filtered()             {}
func (NopObserver) Delivered(Mode)        {}
func (NopObserver) Flushed(int)           {}
func (NopObserver) Discarded(int)         {}
func (NopObserver) SourceError()          {}
func (NopObserver) Faulted()              {}
func (NopObserver) StreamingChanged(bool) {}
func (NopObserver) QueueDepth(int)        {}
