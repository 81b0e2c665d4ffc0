package app

import (
	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/iot-sdk/internal/health"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

// MaxPendingEvents 单个流排队超过该值时健康检查降级
const MaxPendingEvents = 10000

// NewHealthAggregator 创建健康检查聚合器，初始包含所有打开流的检查
func NewHealthAggregator(api *sdk.API) *health.Aggregator {
	return health.NewAggregator(
		health.NewStreamChecker(StreamProbes(api), MaxPendingEvents),
	)
}

// StreamProbes 列出日志消息流与所有打开的数据块源
func StreamProbes(api *sdk.API) func() []health.StreamProbe {
	return func() []health.StreamProbe {
		probes := []health.StreamProbe{api.Messages().Controller()}
		for _, s := range api.Sources() {
			probes = append(probes, s.Controller())
		}
		return probes
	}
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
