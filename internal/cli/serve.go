package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdk/internal/app"
	"github.com/taoyao-code/iot-sdk/internal/app/bootstrap"
	"github.com/taoyao-code/iot-sdk/internal/relay"
)

func newServeCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP inspection console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				e.cfg.HTTP.Addr = addr
			}
			if swagger, _ := cmd.Flags().GetBool("swagger"); swagger {
				e.cfg.HTTP.Swagger = true
			}
			return bootstrap.Run(cmd.Context(), e.cfg, e.log, e.level)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default http.addr)")
	cmd.Flags().Bool("swagger", false, "Serve Swagger UI at /swagger/index.html")
	return cmd
}

func newSimulateCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish null-device events into the Redis relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			blobRate, _ := cmd.Flags().GetFloat64("blob-rate")
			msgRate, _ := cmd.Flags().GetFloat64("message-rate")
			duration, _ := cmd.Flags().GetDuration("duration")
			if blobRate <= 0 {
				blobRate = e.cfg.DataBlob.Rate
			}
			if msgRate <= 0 {
				msgRate = e.cfg.Messages.Rate
			}

			cat, err := app.LoadCatalog(e.cfg.Device.Catalog)
			if err != nil {
				return err
			}
			if !e.cfg.Redis.Enabled {
				return fmt.Errorf("simulate requires redis.enabled (IOTSDK_REDIS_ENABLED=true)")
			}
			client, err := app.NewRedisClient(e.cfg.Redis, e.log)
			if err != nil {
				return err
			}
			defer client.Close()

			queue := app.NewRelayQueue(client, e.cfg.Relay)
			pub := relay.NewPublisher(queue, e.cfg.Relay.BlobKey, e.cfg.Relay.MessageKey)
			sim, err := relay.NewSimulator(pub, cat, blobRate, msgRate, e.log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTitle(fmt.Sprintf("Publishing %d sources @ %g/s, messages @ %g/s to %s",
				len(cat), blobRate, msgRate, e.cfg.Redis.Addr)))
			start := time.Now()
			err = sim.Run(ctx)
			e.log.Info("simulation finished", zap.Duration("elapsed", time.Since(start)))
			return err
		},
	}
	cmd.Flags().Float64("blob-rate", 0, "Blobs per second per source (default datablob.rate)")
	cmd.Flags().Float64("message-rate", 0, "Messages per second (default messages.rate)")
	cmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	return cmd
}
