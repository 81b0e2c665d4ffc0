package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/iot-sdk/internal/metrics"
)

// NewMetrics 初始化注册表与流指标
func NewMetrics() (*prometheus.Registry, *metrics.StreamMetrics) {
	reg := metrics.NewRegistry()
	sm := metrics.NewStreamMetrics(reg)
	return reg, sm
}
