package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset live rate-limit windows",
	Long: `Inspect and reset the rate-limit windows of a running server.

Windows live in the serve process, so these commands talk to the admin
API and require CHATRELAY_ADMIN_TOKEN to be set.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd, rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
