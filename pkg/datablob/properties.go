package datablob

import "github.com/taoyao-code/iot-sdk/pkg/stream"

// StreamProperties 数据块流属性
type StreamProperties struct {
	Rate float64 `mapstructure:"rate" yaml:"rate" json:"rate"` // 事件/秒
}

// DefaultStreamProperties 默认属性：30 个/秒
func DefaultStreamProperties() StreamProperties {
	return StreamProperties{Rate: stream.DefaultRate}
}

// Validate 速率必须为有限正数
func (p StreamProperties) Validate() error {
	return stream.ValidateRate(p.Rate)
}
