package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/output"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage image job bookkeeping on a running server",
}

var jobsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict stale job bookkeeping and expired rate-limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}

		var result struct {
			StaleJobs      int `json:"stale_jobs"`
			ExpiredWindows int `json:"expired_windows"`
		}
		if err := client.post(cmd.Context(), "/admin/jobs/sweep", map[string]any{}, &result); err != nil {
			return err
		}

		format, sink, err := resolveSink(cmd, "jobs.sweep")
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

		_, err = fmt.Fprintf(sink.writer, "Swept %d stale job(s), %d expired window(s)\n",
			result.StaleJobs, result.ExpiredWindows)
		return err
	},
}

func init() {
	addOutputFlags(jobsSweepCmd)
	jobsSweepCmd.Flags().StringVar(&adminServerURL, "server", "", "Base URL of the running server (default from config)")
	jobsCmd.AddCommand(jobsSweepCmd)
	rootCmd.AddCommand(jobsCmd)
}
