// Package config loads feedbackd configuration through viper and decodes
// it into typed structs with mapstructure.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with dots in the
// key replaced by underscores: FEEDBACKD_SERVER_PORT sets server.port.
const EnvPrefix = "FEEDBACKD"

// AppName names the config and data directories.
const AppName = "feedbackd"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// envAliases binds environment names that predate the FEEDBACKD_ prefix.
var envAliases = map[string][]string{
	"feedback.github.token":      {"GITHUB_FEEDBACK_TOKEN"},
	"feedback.github.repository": {"GITHUB_FEEDBACK_REPO"},
}

// SetDefaults registers every known key so that environment overrides are
// visible to AllSettings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.admin_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "production")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("feedback.github.token", "")
	v.SetDefault("feedback.github.repository", "")
	v.SetDefault("feedback.github.api_url", "https://api.github.com")
	v.SetDefault("feedback.github.timeout", 10*time.Second)
	v.SetDefault("feedback.github.requests_per_minute", 30)

	v.SetDefault("feedback.rate_limit.max_submissions", 5)
	v.SetDefault("feedback.rate_limit.window", time.Hour)
	v.SetDefault("feedback.rate_limit.sweep_interval", time.Duration(0))

	v.SetDefault("auth.mode", AuthModeHeader)
	v.SetDefault("auth.timeout", 5*time.Second)
	v.SetDefault("auth.session_url", "")
	v.SetDefault("auth.user_id_header", "X-User-ID")
	v.SetDefault("auth.name_header", "X-User-Name")
	v.SetDefault("auth.email_header", "X-User-Email")
	v.SetDefault("auth.secret_header", "X-Auth-Secret")
	v.SetDefault("auth.secret", "")

	v.SetDefault("store.driver", StoreDriverMemory)
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "feedbackd:ratelimit")
}

// BindEnv enables FEEDBACKD_* overrides and the legacy aliases.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load decodes the settings held by v, validates them and installs the
// result as the current configuration. It is safe to call again on reload.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if cfg.Store.Driver == StoreDriverLibsql &&
		strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a raw settings map into a Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	cfg.Feedback.GitHub.Token = strings.TrimSpace(cfg.Feedback.GitHub.Token)
	cfg.Feedback.GitHub.Repository = strings.TrimSpace(cfg.Feedback.GitHub.Repository)
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Feedback.RateLimit.MaxSubmissions <= 0 {
		errs = append(errs, errors.New("feedback.rate_limit.max_submissions must be positive"))
	}
	if c.Feedback.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("feedback.rate_limit.window must be positive"))
	}
	if c.Feedback.RateLimit.SweepInterval < 0 {
		errs = append(errs, errors.New("feedback.rate_limit.sweep_interval must not be negative"))
	}
	if c.Feedback.GitHub.Timeout <= 0 {
		errs = append(errs, errors.New("feedback.github.timeout must be positive"))
	}

	switch c.Auth.Mode {
	case AuthModeHeader:
		if strings.TrimSpace(c.Auth.UserIDHeader) == "" {
			errs = append(errs, errors.New("auth.user_id_header is required in header mode"))
		}
	case AuthModeSession:
		if strings.TrimSpace(c.Auth.SessionURL) == "" {
			errs = append(errs, errors.New("auth.session_url is required in session mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported auth.mode: %q", c.Auth.Mode))
	}

	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverLibsql:
	case StoreDriverRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.driver: %q", c.Store.Driver))
	}

	return errors.Join(errs...)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// DefaultStorePath returns the per-user database location, honouring
// XDG_DATA_HOME.
func DefaultStorePath() string {
	if dataHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); dataHome != "" {
		return filepath.Join(dataHome, AppName, AppName+".db")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(home, ".local", "share", AppName, AppName+".db")
}
