package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/output"
)

var vipCmd = &cobra.Command{
	Use:   "vip",
	Short: "Manage the persisted VIP roster",
	Long: `Manage the persisted VIP roster. VIP users bypass rate limits.

These commands edit the roster in the history store. A running server
loads the roster at startup; use the admin API to change the live
roster without a restart.`,
}

var vipListCmd = &cobra.Command{
	Use:   "list",
	Short: "List VIP users",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		ids, err := db.VIPs(cmd.Context())
		if err != nil {
			return err
		}

		format, sink, err := resolveSink(cmd, "vip.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.RenderVIPs(format, ids)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

var vipAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Add a VIP user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || userID == 0 {
			return fmt.Errorf("user id must be a non-zero integer")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.AddVIP(cmd.Context(), userID); err != nil {
			return err
		}
		fmt.Printf("Added VIP %d\n", userID)
		return nil
	},
}

var vipRemoveCmd = &cobra.Command{
	Use:   "remove <user-id>",
	Short: "Remove a VIP user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || userID == 0 {
			return fmt.Errorf("user id must be a non-zero integer")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.RemoveVIP(cmd.Context(), userID); err != nil {
			return err
		}
		fmt.Printf("Removed VIP %d\n", userID)
		return nil
	},
}

func init() {
	addOutputFlags(vipListCmd)
	vipCmd.AddCommand(vipListCmd)
	vipCmd.AddCommand(vipAddCmd)
	vipCmd.AddCommand(vipRemoveCmd)
	rootCmd.AddCommand(vipCmd)
}
