package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/output"
)

var (
	rateLimitResetAll  bool
	rateLimitResetUser int64
	rateLimitResetKind string
	rateLimitResetYes  bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset live rate-limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rateLimitResetAll && rateLimitResetUser == 0 {
			return errors.New("either --user or --all is required")
		}
		if rateLimitResetAll && !rateLimitResetYes {
			return errors.New("--all requires --yes")
		}

		client, err := newAdminClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"user_id": rateLimitResetUser,
			"kind":    rateLimitResetKind,
		}
		if rateLimitResetAll {
			body["user_id"] = int64(0)
		}

		var result struct {
			Cleared int `json:"cleared"`
		}
		if err := client.post(cmd.Context(), "/admin/rate-limits/reset", body, &result); err != nil {
			return err
		}

		format, sink, err := resolveSink(cmd, "rate-limit.reset")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		_, err = fmt.Fprintf(sink.writer, "Cleared %d window(s)\n", result.Cleared)
		return err
	},
}

func init() {
	addOutputFlags(rateLimitResetCmd)
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every window for every user")
	rateLimitResetCmd.Flags().Int64Var(&rateLimitResetUser, "user", 0, "Reset windows for a single user")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetKind, "kind", "", "Limit the reset to one action kind (text, image, settings, command, global)")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().StringVar(&adminServerURL, "server", "", "Base URL of the running server (default from config)")
}
