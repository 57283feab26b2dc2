package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/bnema/schedule-from-videos/internal/config"
	"github.com/bnema/schedule-from-videos/internal/logging"
	"github.com/spf13/cobra"
)

func newConfigCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the config file",
	}

	cmd.AddCommand(
		newConfigShowCmd(app),
		newConfigSetCmd(app),
		newConfigUnsetCmd(app),
		newConfigPathCmd(app),
	)

	return cmd
}

type configEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newConfigShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := make([]configEntry, 0, len(config.Keys()))
			for _, key := range config.Keys() {
				value := app.cfg.GetString(key)
				if config.IsSecret(key) && value != "" {
					value = logging.Mask(value)
				}
				entries = append(entries, configEntry{Key: key, Value: value})
			}

			if asJSON {
				return writeIndentedJSON(cmd, struct {
					Path     string        `json:"path"`
					Settings []configEntry `json:"settings"`
				}{Path: app.repo.Path(), Settings: entries})
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "# %s\n", app.repo.Path()); err != nil {
				return err
			}
			for _, entry := range entries {
				if _, err := fmt.Fprintf(out, "%s = %q\n", entry.Key, entry.Value); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func newConfigSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Persist a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := knownKey(args[0])
			if err != nil {
				return err
			}
			return app.service.SetSetting(cmd.Context(), application.SetSettingCommand{Key: key, Value: args[1]})
		},
	}
}

func newConfigUnsetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a persisted setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := knownKey(args[0])
			if err != nil {
				return err
			}
			return app.service.UnsetSetting(cmd.Context(), key)
		},
	}
}

func newConfigPathCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.repo.Path())
			return err
		},
	}
}

func knownKey(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if !config.Known(key) {
		return "", fmt.Errorf("%w: %s", config.ErrUnknownKey, raw)
	}
	return key, nil
}
