package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/bnema/schedule-from-videos/internal/logging"
	"github.com/spf13/cobra"
)

func newSecretCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the stored client secret",
	}

	cmd.AddCommand(
		newSecretSetCmd(app),
		newSecretGetCmd(app),
		newSecretDeleteCmd(app),
		newSecretDecryptCmd(app),
	)

	return cmd
}

func newSecretSetCmd(app *app) *cobra.Command {
	var key string
	var value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the client secret (reads stdin when --value is omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if value == "" {
				read, err := readSecretLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				value = read
			}

			if err := app.service.SetClientSecret(cmd.Context(), application.SetClientSecretCommand{
				StoreKey: key,
				Value:    value,
			}); err != nil {
				return err
			}

			status, err := app.service.ClientSecret(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored client secret under %s\n", status.StoreKey)
			return err
		},
	}

	cmd.Flags().StringVar(&key, "key", application.DefaultClientSecretStoreKey, "Secret-store key")
	cmd.Flags().StringVar(&value, "value", "", "Secret value")

	return cmd
}

func newSecretGetCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the stored client secret, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.service.ClientSecret(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndentedJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			switch {
			case status.StoreKey == "":
				_, err = fmt.Fprintln(out, "no client secret configured")
			case !status.Present:
				_, err = fmt.Fprintf(out, "%s: missing from secret store\n", status.StoreKey)
			default:
				_, err = fmt.Fprintf(out, "%s: %s\n", status.StoreKey, status.Masked)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func newSecretDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the stored client secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.service.RemoveClientSecret(cmd.Context())
		},
	}
}

func newSecretDecryptCmd(app *app) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "decrypt CIPHERTEXT...",
		Short: "Decrypt ciphertexts with the configured backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := app.resolver.DecryptAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			for i, value := range values {
				if !reveal {
					value = logging.Mask(value)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", i+1, value); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print plaintext instead of a masked value")

	return cmd
}

func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret from stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("secret value is required (use --value or stdin)")
	}
	return line, nil
}
