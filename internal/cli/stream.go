package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdk/internal/app"
	"github.com/taoyao-code/iot-sdk/internal/relay"
	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

// 事件获取方式
const (
	modePoll     = "poll"
	modeCallback = "callback"
)

const pollWait = 200 * time.Millisecond

// openAPI 按配置打开 SDK；启用中继时连接 Redis。msgRate>0 覆盖配置速率
func (e *env) openAPI(msgRate float64) (*sdk.API, func(), error) {
	cat, err := app.LoadCatalog(e.cfg.Device.Catalog)
	if err != nil {
		return nil, nil, err
	}

	cfg := *e.cfg
	if msgRate > 0 {
		cfg.Messages.Rate = msgRate
	}

	var queue relay.Queue
	cleanup := func() {}
	if cfg.Relay.Enabled {
		client, err := app.NewRedisClient(cfg.Redis, e.log)
		if err != nil {
			return nil, nil, err
		}
		queue = app.NewRelayQueue(client, cfg.Relay)
		cleanup = func() { _ = client.Close() }
	}

	api, err := app.NewAPI(&cfg, cat, e.log, e.level, nil, queue)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return api, func() {
		if err := api.Close(); err != nil {
			e.log.Warn("sdk close reported errors", zap.Error(err))
		}
		cleanup()
	}, nil
}

// collect 开启推流后按 mode 获取事件，直到达到 count、超过 duration 或 ctx 结束
func collect[T any](
	ctx context.Context,
	mode string,
	count int,
	duration time.Duration,
	setStreaming func(bool) error,
	setCallback func(func(T)) error,
	next func(time.Duration) (T, bool, error),
	emit func(seq int, ev T),
) error {
	if mode != modePoll && mode != modeCallback {
		return fmt.Errorf("invalid --mode %q; expected %s|%s", mode, modePoll, modeCallback)
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	// 回调阻塞直到事件被取走，消费速度就是生产者的背压；返回后不再阻塞生产者
	var ch chan T
	stop := make(chan struct{})
	defer close(stop)
	if mode == modeCallback {
		ch = make(chan T)
		if err := setCallback(func(ev T) {
			select {
			case ch <- ev:
			case <-stop:
			}
		}); err != nil {
			return err
		}
	}
	if err := setStreaming(true); err != nil {
		return err
	}

	seq := 0
	for count <= 0 || seq < count {
		var ev T
		if mode == modeCallback {
			select {
			case <-ctx.Done():
				return setStreaming(false)
			case ev = <-ch:
			}
		} else {
			if ctx.Err() != nil {
				return setStreaming(false)
			}
			got, ok, err := next(pollWait)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			ev = got
		}
		seq++
		emit(seq, ev)
	}
	return setStreaming(false)
}

func newSourcesCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List available data blob sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, closeAPI, err := e.openAPI(0)
			if err != nil {
				return err
			}
			defer closeAPI()

			descs, err := api.AvailableDataBlobSources()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTitle(fmt.Sprintf("Data blob sources (%d)", len(descs))))
			for i, d := range descs {
				fmt.Fprintf(out, "%2d  %s\n", i+1, d.Name)
			}
			return nil
		},
	}
}

func newBlobsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blobs",
		Short: "Stream data blobs from a source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("source")
			rate, _ := cmd.Flags().GetFloat64("rate")
			count, _ := cmd.Flags().GetInt("count")
			duration, _ := cmd.Flags().GetDuration("duration")
			mode, _ := cmd.Flags().GetString("mode")

			api, closeAPI, err := e.openAPI(0)
			if err != nil {
				return err
			}
			defer closeAPI()

			props := e.cfg.StreamProperties()
			if rate > 0 {
				props.Rate = rate
			}
			src, err := api.OpenDataBlobSource(props, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTitle(fmt.Sprintf("%s @ %g/s (%s)", src.StreamName(), props.Rate, mode)))
			return collect[*datablob.DataBlob](cmd.Context(), mode, count, duration,
				src.SetStreamingState,
				func(cb func(*datablob.DataBlob)) error { return src.SetStreamCallback(cb) },
				src.GetNextBlob,
				func(seq int, b *datablob.DataBlob) {
					fmt.Fprintln(out, renderBlob(seq, b))
					b.Release()
				})
		},
	}
	cmd.Flags().String("source", "", "Data blob source name (default first source)")
	cmd.Flags().Float64("rate", 0, "Blobs per second (default datablob.rate)")
	cmd.Flags().Int("count", 10, "Stop after N blobs (0 = until interrupted)")
	cmd.Flags().Duration("duration", 0, "Stop after this long (0 = no limit)")
	cmd.Flags().String("mode", modePoll, "Delivery: poll|callback")
	return cmd
}

func newMessagesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Stream device log messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rate, _ := cmd.Flags().GetFloat64("rate")
			count, _ := cmd.Flags().GetInt("count")
			duration, _ := cmd.Flags().GetDuration("duration")
			mode, _ := cmd.Flags().GetString("mode")
			minLevel, _ := cmd.Flags().GetString("min-level")

			api, closeAPI, err := e.openAPI(rate)
			if err != nil {
				return err
			}
			defer closeAPI()

			if minLevel != "" {
				l, err := message.ParseLevel(minLevel)
				if err != nil {
					return err
				}
				if err := api.SetLogMessageMinimumLevel(l); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTitle(fmt.Sprintf("Log messages >= %s (%s)", api.Messages().MinimumLevel(), mode)))
			return collect[*message.Message](cmd.Context(), mode, count, duration,
				api.SetLogMessageStreamingState,
				func(cb func(*message.Message)) error { return api.SetLogMessageCallback(cb) },
				api.GetNextLogMessage,
				func(seq int, m *message.Message) {
					fmt.Fprintln(out, renderMessage(seq, m))
				})
		},
	}
	cmd.Flags().Float64("rate", 0, "Messages per second (default messages.rate)")
	cmd.Flags().Int("count", 10, "Stop after N messages (0 = until interrupted)")
	cmd.Flags().Duration("duration", 0, "Stop after this long (0 = no limit)")
	cmd.Flags().String("mode", modePoll, "Delivery: poll|callback")
	cmd.Flags().String("min-level", "", "Minimum level: info|warning|error|critical (default messages.minLevel)")
	return cmd
}
