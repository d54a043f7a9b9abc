package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/output"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

var rateLimitListUser int64

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active rate-limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}

		var windows []ratelimit.WindowInfo
		if err := client.get(cmd.Context(), "/admin/rate-limits", &windows); err != nil {
			return err
		}

		if rateLimitListUser != 0 {
			filtered := windows[:0]
			for _, w := range windows {
				if w.UserID == rateLimitListUser {
					filtered = append(filtered, w)
				}
			}
			windows = filtered
		}

		format, sink, err := resolveSink(cmd, "rate-limit.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.RenderWindows(format, windows)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	addOutputFlags(rateLimitListCmd)
	rateLimitListCmd.Flags().Int64Var(&rateLimitListUser, "user", 0, "Only show windows for this user")
	rateLimitListCmd.Flags().StringVar(&adminServerURL, "server", "", "Base URL of the running server (default from config)")
}
