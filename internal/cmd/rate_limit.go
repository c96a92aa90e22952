package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and manage stored feedback quotas",
	Long: `Inspect and manage the per-user submission windows kept by a
persistent store (store.driver libsql or redis).`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rateLimitCmd.AddCommand(rateLimitSweepCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
