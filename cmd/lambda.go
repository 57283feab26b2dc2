package cmd

import (
	"os"
	"os/signal"
	"syscall"

	lambdatransport "github.com/bnema/schedule-from-videos/internal/adapters/transport/lambda"
	"github.com/spf13/cobra"
)

func newLambdaCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve invocations from the AWS Lambda runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			defer func() { _ = app.logger.Sync() }()
			lambdatransport.Start(ctx, lambdatransport.NewHandler(app.invoker, app.logger.Named("lambda")))
			return nil
		},
	}
}
