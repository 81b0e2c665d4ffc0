// Package cli iotsdk 命令行：浏览数据块源、拉取事件、运行控制台与设备模拟器。
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdk/internal/config"
	"github.com/taoyao-code/iot-sdk/internal/logging"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

// BuildTime 构建时间，由 ldflags 覆盖
var BuildTime = "unknown"

// env 命令共享的配置与日志
type env struct {
	cfg   *cfgpkg.Config
	log   *zap.Logger
	level zap.AtomicLevel
}

// NewRootCommand 构造 iotsdk 根命令
func NewRootCommand() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "iotsdk",
		Short: "IoT device SDK tool",
		Long: `iotsdk opens the device SDK against the null device or a Redis relay.

It lists data blob sources, pulls data blobs and log messages at a configured
rate, serves the HTTP inspection console and runs a device simulator that
publishes events into the relay.`,
		Version:       sdk.CurrentVersion.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(path)
			if err != nil {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.Logging.Level = lvl
			}
			log, level, err := logging.InitLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			e.cfg, e.log, e.level = cfg, log, level
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nPlatform: %s/%s\n",
		BuildTime, runtime.GOOS, runtime.GOARCH))

	root.PersistentFlags().String("config", "", "Config file path (default configs/iotsdk.yaml, or IOTSDK_CONFIG)")
	root.PersistentFlags().String("log-level", "", "Override logging.level (debug|info|warn|error)")

	root.AddCommand(
		newSourcesCommand(e),
		newBlobsCommand(e),
		newMessagesCommand(e),
		newServeCommand(e),
		newSimulateCommand(e),
	)
	return root
}
