package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedbackd/feedbackd/internal/output"
	"github.com/feedbackd/feedbackd/internal/store"
)

var (
	rateLimitListOutput string
	rateLimitListOut    string
	rateLimitListOutDir string
	rateLimitListUser   string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored submission windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput, output.FormatTable, output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}
		path, err := sinkPath(rateLimitListOut, rateLimitListOutDir, "rate-limit.list", format)
		if err != nil {
			return err
		}

		cfg, backend, err := openPersistentStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		query := store.WindowQuery{
			UserID: strings.TrimSpace(rateLimitListUser),
			Prefix: strings.TrimSpace(rateLimitListPrefix),
		}
		if query.UserID == "" && query.Prefix == "" {
			query.All = true
		}

		entries, err := selectWindows(cmd.Context(), backend.admin, query)
		if err != nil {
			return err
		}

		limit := cfg.Feedback.RateLimit.MaxSubmissions
		rows := output.WindowRows(entries, limit, cfg.Feedback.RateLimit.Window, time.Now().UTC())

		sink, err := openSink(path)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			rendered, err := output.JSON(rows)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(sink.writer, rendered)
			return err
		}
		if len(rows) == 0 {
			_, err = fmt.Fprintln(sink.writer, "No stored submission windows")
			return err
		}
		_, err = fmt.Fprint(sink.writer, output.WindowTable(rows, limit))
		return err
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOut, "out", "", "Write output to a file (default stdout)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutDir, "out-dir", "", "Write output to a directory")
	rateLimitListCmd.Flags().StringVar(&rateLimitListUser, "user", "", "Show a single user (exact match)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "Show users with a matching id prefix")
}
