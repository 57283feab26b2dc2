package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/spf13/cobra"
)

func newInvokeCmd(app *app) *cobra.Command {
	var userID string
	var payload string
	var timezone string
	var timeout time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Fetch archived videos for a user and print the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := invocationPayload(userID, payload)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("load timezone %q: %w", timezone, err)
			}
			return runInvoke(cmd, app, body, invokeOptions{
				userID:   userID,
				location: loc,
				timeout:  timeout,
				asJSON:   asJSON,
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Broadcaster user ID")
	cmd.Flags().StringVar(&payload, "payload", "", "Raw JSON invocation payload (overrides --user-id)")
	cmd.Flags().StringVar(&timezone, "tz", "Local", "Timezone used to display start times")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall invocation deadline")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON result")
	cmd.MarkFlagsOneRequired("user-id", "payload")

	return cmd
}

type invokeOptions struct {
	userID   string
	location *time.Location
	timeout  time.Duration
	asJSON   bool
}

func invocationPayload(userID, raw string) (json.RawMessage, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, errors.New("--payload must be valid JSON")
		}
		return json.RawMessage(raw), nil
	}
	return json.Marshal(application.ScheduleRequest{UserID: strings.TrimSpace(userID)})
}

func runInvoke(cmd *cobra.Command, app *app, payload json.RawMessage, opts invokeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var result json.RawMessage
	invoke := func(ctx context.Context, progress application.Progress) error {
		var err error
		result, err = app.invoker.InvokeWithProgress(ctx, payload, progress)
		return err
	}

	var err error
	if opts.asJSON {
		err = invoke(ctx, nil)
	} else {
		err = runInvokeProgress(ctx, cmd.ErrOrStderr(), opts.userID, invoke)
	}
	if err != nil {
		var invocationErr *application.InvocationError
		if errors.As(err, &invocationErr) {
			return describeFailure(invocationErr.Payload)
		}
		return err
	}

	if opts.asJSON {
		return writeJSONOutput(cmd, result)
	}

	var entries []domain.ScheduleEntry
	if err := json.Unmarshal(result, &entries); err != nil {
		return fmt.Errorf("decode schedule: %w", err)
	}
	return writeScheduleOutput(cmd, app, entries, opts)
}

// describeFailure turns an Error payload into a readable error.
func describeFailure(payload json.RawMessage) error {
	var failure application.Failure
	if err := json.Unmarshal(payload, &failure); err != nil || failure.Kind == "" {
		return fmt.Errorf("invocation failed: %s", payload)
	}

	parts := []string{failure.Kind}
	if failure.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", failure.Status))
	}
	if failure.Message != "" {
		parts = append(parts, failure.Message)
	}
	if len(failure.Body) > 0 {
		parts = append(parts, string(failure.Body))
	}
	return fmt.Errorf("invocation failed: %s", strings.Join(parts, ": "))
}
