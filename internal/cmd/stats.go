package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/output"
	"github.com/chatrelay/chatrelay/internal/relay/engine"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live relay stats from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}

		var stats engine.Stats
		if err := client.get(cmd.Context(), "/admin/stats", &stats); err != nil {
			return err
		}

		format, sink, err := resolveSink(cmd, "stats")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.RenderStats(format, stats)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addOutputFlags(statsCmd)
	statsCmd.Flags().StringVar(&adminServerURL, "server", "", "Base URL of the running server (default from config)")
}
