package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/schedule-from-videos/internal/adapters/transport/httpapi"
	"github.com/bnema/schedule-from-videos/internal/adapters/transport/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve invocations over HTTP and, when a bridge token is set, the bridge over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serve := app.settings.Serve
			addr := listen
			if addr == "" {
				addr = serve.Listen
			}

			logger := app.logger.Named("http")
			var opts []httpapi.Option
			if serve.BridgeToken != "" {
				bridge := ws.NewHandler(app.authorized, ws.Config{
					AllowedOrigins: serve.AllowedOrigins,
					Token:          serve.BridgeToken,
				}, app.logger.Named("ws"))
				opts = append(opts, httpapi.WithHandler("GET /bridge", bridge))
				logger.Info("bridge enabled", zap.Strings("allowed_origins", serve.AllowedOrigins))
			}

			server := httpapi.New(app.invoker, logger, opts...)
			logger.Info("listening", zap.String("addr", addr))
			return server.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (defaults to serve.listen)")

	return cmd
}
