package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// StreamMetrics 事件流指标，按 stream 标签区分
type StreamMetrics struct {
	Generated    *prometheus.CounterVec // labels: stream
	Filtered     *prometheus.CounterVec // labels: stream
	Delivered    *prometheus.CounterVec // labels: stream, mode=push|pull|dropped
	Flushed      *prometheus.CounterVec // labels: stream
	Discarded    *prometheus.CounterVec // labels: stream
	SourceErrors *prometheus.CounterVec // labels: stream
	Faults       *prometheus.CounterVec // labels: stream
	QueueDepth   *prometheus.GaugeVec   // labels: stream
	Streaming    *prometheus.GaugeVec   // labels: stream
	RelayDecoded *prometheus.CounterVec // labels: key, result=ok|error
}

// NewStreamMetrics 注册并返回流指标
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		Generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_generated_total",
			Help: "Events produced by the stream source.",
		}, []string{"stream"}),
		Filtered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_filtered_total",
			Help: "Events dropped by the severity filter.",
		}, []string{"stream"}),
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_delivered_total",
			Help: "Events handed to the mediator by delivery mode.",
		}, []string{"stream", "mode"}),
		Flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_flushed_total",
			Help: "Queued events discarded when the callback changed.",
		}, []string{"stream"}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_discarded_total",
			Help: "Queued events discarded when the stream closed.",
		}, []string{"stream"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_source_errors_total",
			Help: "Transient errors returned by the stream source.",
		}, []string{"stream"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_faults_total",
			Help: "Producer faults.",
		}, []string{"stream"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_queue_depth",
			Help: "Events waiting in the pull queue.",
		}, []string{"stream"}),
		Streaming: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_streaming",
			Help: "1 while the stream is running.",
		}, []string{"stream"}),
		RelayDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_envelopes_total",
			Help: "Relay envelopes read from redis by decode result.",
		}, []string{"key", "result"}),
	}
	reg.MustRegister(m.Generated, m.Filtered, m.Delivered, m.Flushed, m.Discarded,
		m.SourceErrors, m.Faults, m.QueueDepth, m.Streaming, m.RelayDecoded)
	return m
}

// For 返回写入 name 标签的观察者
func (m *StreamMetrics) For(name string) stream.Observer {
	return &streamObserver{m: m, name: name}
}

type streamObserver struct {
	m    *StreamMetrics
	name string
}

func (o *streamObserver) Generated() { o.m.Generated.WithLabelValues(o.name).Inc() }
func (o *streamObserver) Filtered()  { o.m.Filtered.WithLabelValues(o.name).Inc() }
func (o *streamObserver) Delivered(mode stream.Mode) {
	o.m.Delivered.WithLabelValues(o.name, string(mode)).Inc()
}
func (o *streamObserver) Flushed(n int) { o.m.Flushed.WithLabelValues(o.name).Add(float64(n)) }
func (o *streamObserver) Discarded(n int) {
	o.m.Discarded.WithLabelValues(o.name).Add(float64(n))
}
func (o *streamObserver) SourceError() { o.m.SourceErrors.WithLabelValues(o.name).Inc() }
func (o *streamObserver) Faulted()     { o.m.Faults.WithLabelValues(o.name).Inc() }
func (o *streamObserver) StreamingChanged(on bool) {
	v := 0.0
	if on {
		v = 1
	}
	o.m.Streaming.WithLabelValues(o.name).Set(v)
}
func (o *streamObserver) QueueDepth(n int) { o.m.QueueDepth.WithLabelValues(o.name).Set(float64(n)) }
