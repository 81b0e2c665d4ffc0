package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// StreamProbe 可被检查的流控制器
type StreamProbe interface {
	Name() string
	State() stream.State
	Pending() int
}

// StreamChecker 流健康检查：任一流故障为不健康，积压超过阈值为降级
type StreamChecker struct {
	list       func() []StreamProbe
	maxPending int
}

// NewStreamChecker 创建流检查器；maxPending<=0 时不检查积压
func NewStreamChecker(list func() []StreamProbe, maxPending int) *StreamChecker {
	return &StreamChecker{list: list, maxPending: maxPending}
}

// Name 返回检查器名称
func (c *StreamChecker) Name() string {
	return "streams"
}

// Check 执行健康检查
func (c *StreamChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	status := StatusHealthy
	message := "ok"
	details := make(map[string]interface{})

	for _, p := range c.list() {
		state := p.State()
		pending := p.Pending()
		details[p.Name()] = map[string]interface{}{
			"state":   state.String(),
			"pending": pending,
		}
		switch {
		case state == stream.StateFaulted:
			status = StatusUnhealthy
			message = fmt.Sprintf("stream %s faulted", p.Name())
		case c.maxPending > 0 && pending > c.maxPending && status == StatusHealthy:
			status = StatusDegraded
			message = fmt.Sprintf("stream %s backlog %d", p.Name(), pending)
		}
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
