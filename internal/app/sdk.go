package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdk/internal/config"
	"github.com/taoyao-code/iot-sdk/internal/metrics"
	"github.com/taoyao-code/iot-sdk/internal/relay"
	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

// LoadCatalog 读取数据块源目录，路径为空时使用空设备目录
func LoadCatalog(path string) (datablob.Catalog, error) {
	if path == "" {
		return datablob.DefaultCatalog(), nil
	}
	return datablob.LoadCatalog(path)
}

// NewAPI 按配置打开设备 SDK。queue 非空时数据块与日志消息改从设备中继读取
func NewAPI(cfg *cfgpkg.Config, cat datablob.Catalog, log *zap.Logger, level zap.AtomicLevel, sm *metrics.StreamMetrics, queue relay.Queue) (*sdk.API, error) {
	opts := []sdk.Option{
		sdk.WithLogger(log),
		sdk.WithLevel(level),
		sdk.WithVerbosity(cfg.Device.Verbosity),
		sdk.WithCatalog(cat),
		sdk.WithMessageRate(cfg.Messages.Rate),
	}
	if sm != nil {
		opts = append(opts, sdk.WithObserverFactory(sm.For))
	}
	if queue != nil {
		ropts := relay.Options{PollTimeout: cfg.Relay.PollTimeout, Logger: log, Metrics: sm}
		opts = append(opts,
			sdk.WithBlobSourceFactory(relay.BlobFactory(queue, cfg.Relay.BlobKey, ropts)),
			sdk.WithMessageSource(relay.NewMessageSource(queue, cfg.Relay.MessageKey, ropts)),
		)
		log.Info("device relay enabled",
			zap.String("blob_key", cfg.Relay.BlobKey),
			zap.String("message_key", cfg.Relay.MessageKey))
	}

	api, err := sdk.Open(sdk.Params{User: cfg.Device.User, Credentials: []byte(cfg.Device.Credentials)}, opts...)
	if err != nil {
		return nil, err
	}
	if err := api.SetLogMessageMinimumLevel(cfg.MinLevel()); err != nil {
		_ = api.Close()
		return nil, err
	}
	return api, nil
}
