package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/feedbackd/feedbackd/internal/auth"
	"github.com/feedbackd/feedbackd/internal/config"
	errwrap "github.com/feedbackd/feedbackd/internal/errors"
	"github.com/feedbackd/feedbackd/internal/feedback"
	"github.com/feedbackd/feedbackd/internal/metrics"
	"github.com/feedbackd/feedbackd/internal/observability"
	"github.com/feedbackd/feedbackd/internal/ratelimit"
	"github.com/feedbackd/feedbackd/internal/server"
	"github.com/feedbackd/feedbackd/internal/server/handlers"
	"github.com/feedbackd/feedbackd/internal/tracker/github"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the feedback HTTP server",
	Long: `Start the HTTP server and the rate window sweeper.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload configuration; GitHub token and repository apply immediately`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
		}

		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:     config.AppName,
			Level:       cfg.Logging.Level,
			Environment: cfg.Logging.Environment,
			Namespace:   config.AppName,
		})
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}
		metrics.SetServerStartTime(time.Now().Unix())

		backend, err := openWindowStore(ctx, cfg)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "rate window store unavailable")
		}

		limiter := ratelimit.NewLimiter(backend.store, cfg.Feedback.RateLimit.MaxSubmissions, cfg.Feedback.RateLimit.Window)
		sweeper := ratelimit.NewSweeper(limiter, cfg.Feedback.RateLimit.SweepInterval, logSweep)

		service := feedback.NewService(currentSettings, limiter, github.NewTracker(newGitHubClient(cfg.Feedback.GitHub)))
		service.Timeout = cfg.Feedback.GitHub.Timeout

		resolver, err := newAuthResolver(cfg.Auth)
		if err != nil {
			_ = backend.Close()
			return errwrap.WrapConfigInvalid(ctx, err, "invalid auth configuration")
		}

		// With health.enabled off the health routes still answer, without
		// dependency checks.
		hm := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Health.Enabled {
			hm.RegisterChecker("feedback", handlers.FeedbackChecker(currentSettings))
			if cfg.Metrics.Enabled {
				hm.RegisterChecker("telemetry", handlers.TelemetryChecker())
			}
			if backend.pinger != nil {
				hm.RegisterChecker("window_store", handlers.StoreChecker(backend.pinger))
			}
		}

		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			Feedback: &handlers.FeedbackHandler{
				Service:      service,
				Auth:         resolver,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
			},
			Health:     hm,
			AdminToken: cfg.Server.AdminToken,
		})

		logger.Info("Initializing server",
			zap.String("version", versionInfo.Version),
			zap.String("addr", srv.Addr()),
			zap.String("store", backend.driver),
			zap.String("auth_mode", cfg.Auth.Mode),
			zap.Int("max_submissions", cfg.Feedback.RateLimit.MaxSubmissions),
			zap.Duration("window", cfg.Feedback.RateLimit.Window),
			zap.Bool("feedback_enabled", service.Status().Enabled))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run last-registered first.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Metrics exporter shutdown failed", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			sweeper.Stop()
			if err := backend.Close(); err != nil {
				logger.Warn("Closing rate window store failed", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(reloadConfig)

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		sweeper.Start(ctx)

		serverErr := make(chan error, 1)
		go func() {
			serverErr <- srv.Start()
		}()

		listenDone := make(chan error, 1)
		go func() {
			listenDone <- signals.Listen(ctx)
		}()

		for {
			select {
			case err := <-serverErr:
				if err != nil {
					sweeper.Stop()
					_ = backend.Close()
					return errwrap.WrapInternal(ctx, err, "server error")
				}
				// Closed by a shutdown handler; wait for the listener to finish.
				serverErr = nil
			case err := <-listenDone:
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Signal handler error", zap.Error(err))
					return errwrap.WrapInternal(ctx, err, "signal handling failed")
				}
				return nil
			}
		}
	},
}

// currentSettings reads the GitHub settings from the live configuration so
// a SIGHUP reload takes effect on the next request.
var currentSettings = feedback.SettingsFunc(func() feedback.Settings {
	cfg := config.GetConfig()
	if cfg == nil {
		return feedback.Settings{}
	}
	return feedback.Settings{
		Token:      cfg.Feedback.GitHub.Token,
		Repository: cfg.Feedback.GitHub.Repository,
	}
})

func newGitHubClient(cfg config.GitHubConfig) *github.Client {
	return &github.Client{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Limiter:    github.NewRateLimiter(cfg.RequestsPerMinute),
		UserAgent:  fmt.Sprintf("%s/%s", config.AppName, versionInfo.Version),
	}
}

func newAuthResolver(cfg config.AuthConfig) (auth.Resolver, error) {
	switch cfg.Mode {
	case config.AuthModeHeader:
		return &auth.HeaderResolver{
			UserIDHeader: cfg.UserIDHeader,
			NameHeader:   cfg.NameHeader,
			EmailHeader:  cfg.EmailHeader,
			SecretHeader: cfg.SecretHeader,
			Secret:       cfg.Secret,
		}, nil
	case config.AuthModeSession:
		return &auth.SessionResolver{URL: cfg.SessionURL, Timeout: cfg.Timeout}, nil
	}
	return nil, fmt.Errorf("unsupported auth.mode: %q", cfg.Mode)
}

func logSweep(stats ratelimit.SweepStats, err error) {
	logger := observability.ServerLogger
	if err != nil {
		if logger != nil {
			logger.Warn("Rate window sweep failed", zap.Error(err))
		}
		return
	}
	metrics.RecordSweep(stats.Users, stats.Removed, stats.Evicted)
	if logger != nil {
		logger.Debug("Rate window sweep complete",
			zap.Int("users", stats.Users),
			zap.Int("removed", stats.Removed),
			zap.Int("evicted", stats.Evicted))
	}
}

// reloadConfig re-reads the config file on SIGHUP. A config that fails
// validation is rejected and the previous one stays active.
func reloadConfig(ctx context.Context) error {
	logger := observability.ServerLogger
	logger.Info("Received SIGHUP: reloading configuration")

	previous := config.GetConfig()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("Reloaded configuration is invalid; keeping previous", zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	fields := []zap.Field{zap.String("file", viper.ConfigFileUsed())}
	if previous != nil {
		fields = append(fields,
			zap.Bool("repository_changed", previous.Feedback.GitHub.Repository != cfg.Feedback.GitHub.Repository),
			zap.Bool("token_changed", previous.Feedback.GitHub.Token != cfg.Feedback.GitHub.Token))
		if previous.Store != cfg.Store || previous.Redis != cfg.Redis || previous.Auth != cfg.Auth {
			logger.Warn("Store and auth changes require a restart")
		}
	}
	logger.Info("Configuration reloaded", fields...)
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
