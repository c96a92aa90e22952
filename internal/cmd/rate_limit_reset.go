package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedbackd/feedbackd/internal/output"
	"github.com/feedbackd/feedbackd/internal/store"
)

var (
	rateLimitResetAll    bool
	rateLimitResetUser   string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
	rateLimitResetOutput string
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear stored submission windows",
	Long: `Clear stored submission windows so the affected users get their full
quota back. Select users with --user, --prefix or --all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput, output.FormatTable, output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}

		query := store.WindowQuery{
			All:    rateLimitResetAll,
			UserID: strings.TrimSpace(rateLimitResetUser),
			Prefix: strings.TrimSpace(rateLimitResetPrefix),
		}
		if err := validateResetQuery(query, rateLimitResetYes, rateLimitResetDryRun); err != nil {
			return err
		}

		_, backend, err := openPersistentStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		matched, err := selectWindows(cmd.Context(), backend.admin, query)
		if err != nil {
			return err
		}
		if rateLimitResetDryRun {
			return writeResetResult(cmd.OutOrStdout(), format, len(matched), 0, true)
		}

		cleared, err := resetWindows(cmd.Context(), backend.admin, query)
		if err != nil {
			return err
		}
		return writeResetResult(cmd.OutOrStdout(), format, len(matched), cleared, false)
	},
}

func validateResetQuery(q store.WindowQuery, yes, dryRun bool) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.All && !yes && !dryRun {
		return errors.New("--all requires --yes (or use --dry-run)")
	}
	return nil
}

func writeResetResult(w io.Writer, format output.Format, matched, cleared int, dryRun bool) error {
	if format == output.FormatJSON {
		rendered, err := output.JSON(map[string]any{
			"matched": matched,
			"cleared": cleared,
			"dry_run": dryRun,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, rendered)
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would clear %d user window(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Cleared %d/%d user window(s)\n", cleared, matched)
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every user")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetUser, "user", "", "Reset a single user (exact match)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset users with a matching id prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm resetting every user")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be cleared")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
