package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig 控制台 HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Swagger      bool          `mapstructure:"swagger"`
	Auth         AuthConfig    `mapstructure:"auth"`
}

// AuthConfig 控制台 API Key 认证
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// LumberjackConfig 日志滚动（lumberjack）配置，Filename 为空时只输出到标准输出
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// DeviceConfig 设备连接参数
type DeviceConfig struct {
	User        string `mapstructure:"user"`
	Credentials string `mapstructure:"credentials"`
	Catalog     string `mapstructure:"catalog"` // 数据块源目录 YAML，为空使用空设备目录
	Verbosity   uint16 `mapstructure:"verbosity"`
}

// DataBlobConfig 数据块流配置
type DataBlobConfig struct {
	Rate float64 `mapstructure:"rate"`
}

// MessagesConfig 日志消息流配置
type MessagesConfig struct {
	Rate     float64 `mapstructure:"rate"`
	MinLevel string  `mapstructure:"minLevel"`
}

// RelayConfig 设备中继配置：事件经 Redis 列表送达
type RelayConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BlobKey     string        `mapstructure:"blobKey"`    // 数据块列表键前缀，后接源名称
	MessageKey  string        `mapstructure:"messageKey"` // 日志消息列表键
	DeadKey     string        `mapstructure:"deadKey"`    // 无法解析的信封
	DeadKeep    int64         `mapstructure:"deadKeep"`   // 死信保留条数
	PollTimeout time.Duration `mapstructure:"pollTimeout"`
}

// Config 顶层配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Device   DeviceConfig   `mapstructure:"device"`
	DataBlob DataBlobConfig `mapstructure:"datablob"`
	Messages MessagesConfig `mapstructure:"messages"`
	Relay    RelayConfig    `mapstructure:"relay"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 IOTSDK_CONFIG 读取；否则回退到 configs/iotsdk.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 IOTSDK_，并将点号替换为下划线
	v.SetEnvPrefix("IOTSDK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("iotsdk")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验流速率与日志级别
func (c *Config) Validate() error {
	if err := stream.ValidateRate(c.DataBlob.Rate); err != nil {
		return fmt.Errorf("datablob.rate: %w", err)
	}
	if err := stream.ValidateRate(c.Messages.Rate); err != nil {
		return fmt.Errorf("messages.rate: %w", err)
	}
	if _, err := message.ParseLevel(c.Messages.MinLevel); err != nil {
		return fmt.Errorf("messages.minLevel: %w", err)
	}
	if c.Relay.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("%w: relay requires redis.enabled", stream.ErrInvalidConfiguration)
	}
	return nil
}

// MinLevel 解析后的日志消息最低级别
func (c *Config) MinLevel() message.Level {
	l, err := message.ParseLevel(c.Messages.MinLevel)
	if err != nil {
		return message.LevelInfo
	}
	return l
}

// StreamProperties 数据块流属性
func (c *Config) StreamProperties() datablob.StreamProperties {
	return datablob.StreamProperties{Rate: c.DataBlob.Rate}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "iotsdk")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.swagger", false)
	v.SetDefault("http.auth.enabled", false)
	v.SetDefault("http.auth.apiKeys", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")

	v.SetDefault("device.user", "")
	v.SetDefault("device.catalog", "")
	v.SetDefault("device.verbosity", 150)

	v.SetDefault("datablob.rate", stream.DefaultRate)

	v.SetDefault("messages.rate", message.DefaultRate)
	v.SetDefault("messages.minLevel", "info")

	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.blobKey", "iotsdk:blobs:")
	v.SetDefault("relay.messageKey", "iotsdk:messages")
	v.SetDefault("relay.deadKey", "iotsdk:dead")
	v.SetDefault("relay.deadKeep", 1000)
	v.SetDefault("relay.pollTimeout", "1s")
}
