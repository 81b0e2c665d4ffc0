package console

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdk/internal/config"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

// RegisterRoutes 注册控制台路由
func RegisterRoutes(r gin.IRouter, api *sdk.API, authCfg cfgpkg.AuthConfig, logger *zap.Logger) {
	if r == nil || api == nil {
		return
	}
	h := NewHandler(api, logger)

	v1 := r.Group("/api/v1")
	if authCfg.Enabled {
		v1.Use(APIKeyAuth(authCfg, logger))
		logger.Info("console authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("console authentication disabled")
	}

	v1.GET("/info", h.Info)
	v1.PUT("/verbosity", h.SetVerbosity)
	v1.GET("/sources", h.ListSources)
	v1.GET("/streams", h.ListStreams)

	v1.POST("/blobs", h.OpenBlobSource)
	v1.PUT("/blobs/:id/streaming", h.SetBlobStreaming)
	v1.GET("/blobs/:id/next", h.NextBlob)
	v1.DELETE("/blobs/:id", h.CloseBlobSource)

	v1.PUT("/messages/streaming", h.SetMessageStreaming)
	v1.GET("/messages/next", h.NextMessage)
	v1.GET("/messages/pending", h.PendingMessages)
	v1.PUT("/messages/level", h.SetMessageLevel)

	logger.Info("console routes registered", zap.Int("endpoints", 12))
}
