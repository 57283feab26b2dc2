package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sfv",
		Short: "Schedule From Videos (sfv): build a broadcast schedule from archived videos",
		Long: "sfv exchanges Twitch client credentials for an app token, fetches a channel's archived videos, " +
			"and returns their start times and durations. It runs as a CLI, an AWS Lambda function, or an HTTP service.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		rootCmd.AddCommand(newVersionCmd())
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newInvokeCmd(app),
		newLambdaCmd(app),
		newServeCmd(app),
		newSecretCmd(app),
		newConfigCmd(app),
	)

	return rootCmd
}
