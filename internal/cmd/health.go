package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/feedbackd/feedbackd/internal/config"
	errwrap "github.com/feedbackd/feedbackd/internal/errors"
	"github.com/feedbackd/feedbackd/internal/feedback"
	"github.com/feedbackd/feedbackd/internal/observability"
)

type healthResult struct {
	name   string
	ok     bool
	warn   bool
	detail string
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Check that the configuration is valid, the rate window store is
reachable and the GitHub integration is configured.`,
	Run: func(cmd *cobra.Command, args []string) {
		results, failed := runSelfChecks(cmd.Context())
		writeHealthBox(cmd.OutOrStdout(), results)
		if failed {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Health check failed",
				errwrap.NewConfigInvalidError("one or more health checks failed"))
		}
	},
}

func runSelfChecks(ctx context.Context) ([]healthResult, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := []healthResult{{name: "version", ok: versionInfo.Version != "", detail: versionInfo.Version}}

	cfg, err := loadConfig()
	if err != nil {
		results = append(results, healthResult{name: "config", detail: err.Error()})
		return results, true
	}
	results = append(results, healthResult{name: "config", ok: true, detail: "valid"})
	results = append(results, checkWindowStore(ctx, cfg))

	settings := feedback.Settings{Token: cfg.Feedback.GitHub.Token, Repository: cfg.Feedback.GitHub.Repository}
	switch _, _, ok := settings.Target(); {
	case !settings.Enabled():
		results = append(results, healthResult{name: "github", ok: true, warn: true, detail: "not configured; submissions return 503"})
	case !ok:
		results = append(results, healthResult{name: "github", ok: true, warn: true, detail: "repository must be owner/repo"})
	default:
		results = append(results, healthResult{name: "github", ok: true, detail: settings.Repository})
	}

	failed := false
	for _, r := range results {
		if !r.ok {
			failed = true
		}
	}
	return results, failed
}

func checkWindowStore(ctx context.Context, cfg *config.Config) healthResult {
	backend, err := openWindowStore(ctx, cfg)
	if err != nil {
		return healthResult{name: "store", detail: err.Error()}
	}
	defer backend.Close() // nolint:errcheck // best-effort cleanup

	if backend.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := backend.pinger.Ping(pingCtx); err != nil {
			return healthResult{name: "store", detail: fmt.Sprintf("%s: %v", backend.driver, err)}
		}
	}
	return healthResult{name: "store", ok: true, detail: backend.driver}
}

func writeHealthBox(w io.Writer, results []healthResult) {
	lines := []string{"feedbackd health", ""}
	for _, r := range results {
		mark := "✅"
		switch {
		case !r.ok:
			mark = "❌"
		case r.warn:
			mark = "⚠️"
		}
		lines = append(lines, fmt.Sprintf("%s %-8s %s", mark, r.name, r.detail))
	}
	_, _ = fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
