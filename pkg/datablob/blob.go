// Package datablob 二进制样本流：按固定速率产生带时间戳的数据块，
// 支持回调推送或按超时拉取两种消费方式。
package datablob

import (
	"time"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// DataBlob 一个数据块：负载 + UTC 时间戳。
// 交给消费者后归消费者所有，用完调用 Release 释放负载引用。
type DataBlob struct {
	at   time.Time
	data []byte
}

// NewDataBlob 复制 data 构造数据块
func NewDataBlob(at time.Time, data []byte) *DataBlob {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &DataBlob{at: at.UTC(), data: buf}
}

// Time 数据块时间戳
func (b *DataBlob) Time() time.Time { return b.at }

// Timeval 时间戳的整秒 + 微秒表示
func (b *DataBlob) Timeval() (sec, usec int64) {
	return stream.ToTimeval(b.at)
}

// Data 负载；Release 之后返回 nil
func (b *DataBlob) Data() []byte { return b.data }

// Size 负载长度
func (b *DataBlob) Size() int { return len(b.data) }

// Release 释放负载引用。同一数据块只应由其持有者调用。
func (b *DataBlob) Release() {
	b.data = nil
}
