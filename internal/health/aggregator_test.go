package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator(t *testing.T) {
	t.Run("全部健康", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"streams", StatusHealthy},
			&mockChecker{"redis", StatusHealthy},
		)
		if status := agg.OverallStatus(context.Background()); status != StatusHealthy {
			t.Errorf("期望StatusHealthy，实际: %v", status)
		}
		if !agg.Ready(context.Background()) {
			t.Error("全部健康时应该Ready")
		}
	})

	t.Run("部分降级", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"streams", StatusHealthy},
			&mockChecker{"redis", StatusDegraded},
		)
		if status := agg.OverallStatus(context.Background()); status != StatusDegraded {
			t.Errorf("期望StatusDegraded，实际: %v", status)
		}
		if !agg.Ready(context.Background()) {
			t.Error("降级状态应该仍然Ready")
		}
	})

	t.Run("部分不健康", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"streams", StatusUnhealthy},
			&mockChecker{"redis", StatusDegraded},
		)
		if status := agg.OverallStatus(context.Background()); status != StatusUnhealthy {
			t.Errorf("期望StatusUnhealthy，实际: %v", status)
		}
		if agg.Ready(context.Background()) {
			t.Error("不健康状态不应该Ready")
		}
	})

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})

		report := agg.Report(context.Background())
		if len(report.Checks) != 2 {
			t.Errorf("期望2个结果，实际: %d", len(report.Checks))
		}
		if report.Status != StatusHealthy {
			t.Errorf("期望StatusHealthy，实际: %v", report.Status)
		}
	})
}

type fakeProbe struct {
	name    string
	state   stream.State
	pending int
}

func (p fakeProbe) Name() string        { return p.name }
func (p fakeProbe) State() stream.State { return p.state }
func (p fakeProbe) Pending() int        { return p.pending }

func TestStreamChecker(t *testing.T) {
	cases := []struct {
		name   string
		probes []StreamProbe
		want   Status
	}{
		{"全部正常", []StreamProbe{fakeProbe{"messages", stream.StateRunning, 3}}, StatusHealthy},
		{"积压降级", []StreamProbe{fakeProbe{"blobs", stream.StateStopped, 500}}, StatusDegraded},
		{"故障不健康", []StreamProbe{
			fakeProbe{"blobs", stream.StateStopped, 500},
			fakeProbe{"messages", stream.StateFaulted, 0},
		}, StatusUnhealthy},
		{"没有流", nil, StatusHealthy},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			probes := c.probes
			checker := NewStreamChecker(func() []StreamProbe { return probes }, 100)
			res := checker.Check(context.Background())
			if res.Status != c.want {
				t.Errorf("期望%v，实际: %v (%s)", c.want, res.Status, res.Message)
			}
			if len(res.Details) != len(probes) {
				t.Errorf("期望%d个流详情，实际: %d", len(probes), len(res.Details))
			}
		})
	}
}

func TestHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(agg *Aggregator, path string) *httptest.ResponseRecorder {
		r := gin.New()
		RegisterHTTPRoutes(r, agg)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	healthy := NewAggregator(&mockChecker{"streams", StatusHealthy})
	faulted := NewAggregator(&mockChecker{"streams", StatusUnhealthy})

	if w := serve(healthy, "/health/ready"); w.Code != http.StatusOK {
		t.Errorf("/health/ready 期望200，实际: %d", w.Code)
	}
	if w := serve(faulted, "/health/ready"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("/health/ready 期望503，实际: %d", w.Code)
	}
	if w := serve(faulted, "/health/live"); w.Code != http.StatusOK {
		t.Errorf("/health/live 期望200，实际: %d", w.Code)
	}

	w := serve(faulted, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/health 期望503，实际: %d", w.Code)
	}
	var report HealthReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if report.Status != StatusUnhealthy || len(report.Checks) != 1 {
		t.Errorf("报告内容不符: %+v", report)
	}
}
