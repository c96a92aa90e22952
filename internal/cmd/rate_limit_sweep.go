package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedbackd/feedbackd/internal/metrics"
	"github.com/feedbackd/feedbackd/internal/output"
	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

var rateLimitSweepOutput string

var rateLimitSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Drop expired timestamps and empty windows once",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitSweepOutput, output.FormatTable, output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}

		cfg, backend, err := openPersistentStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		limiter := ratelimit.NewLimiter(backend.store, cfg.Feedback.RateLimit.MaxSubmissions, cfg.Feedback.RateLimit.Window)
		stats, err := limiter.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep %s store: %w", backend.driver, err)
		}
		metrics.RecordSweep(stats.Users, stats.Removed, stats.Evicted)

		if format == output.FormatJSON {
			rendered, err := output.JSON(stats)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d timestamp(s), evicted %d user(s), %d user(s) still tracked\n",
			stats.Removed, stats.Evicted, stats.Users)
		return err
	},
}

func init() {
	rateLimitSweepCmd.Flags().StringVar(&rateLimitSweepOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
