package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	scheduleadapter "github.com/bnema/schedule-from-videos/internal/adapters/render/schedule"
	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/spf13/cobra"
)

func writeScheduleOutput(cmd *cobra.Command, app *app, entries []domain.ScheduleEntry, opts invokeOptions) error {
	rendered, err := app.scheduleRenderer(entries, scheduleadapter.RenderOptions{
		UserID:   opts.userID,
		Now:      app.now(),
		Location: opts.location,
	})
	if err != nil {
		return fmt.Errorf("render schedule: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func writeJSONOutput(cmd *cobra.Command, raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return err
}

func writeIndentedJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
