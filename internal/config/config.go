package config

import "time"

// Config is the complete feedbackd configuration. Values come from
// defaults, an optional YAML file, FEEDBACKD_* environment variables and
// command-line flags, in increasing order of precedence.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Health   HealthConfig   `mapstructure:"health" yaml:"health" json:"health"`
	Feedback FeedbackConfig `mapstructure:"feedback" yaml:"feedback" json:"feedback"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth" json:"auth"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`

	// AdminToken enables POST /admin/signal when set.
	AdminToken string `mapstructure:"admin_token" yaml:"admin_token" json:"admin_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level" json:"level"`

	// Environment is attached to every structured log line.
	Environment string `mapstructure:"environment" yaml:"environment" json:"environment"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Port is the exporter port. /metrics on the main server proxies it.
	Port int `mapstructure:"port" yaml:"port" json:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// FeedbackConfig groups the issue tracker and quota settings.
type FeedbackConfig struct {
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github" json:"github"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// GitHubConfig configures issue creation. Submissions are disabled until
// both Token and Repository are set.
type GitHubConfig struct {
	Token             string        `mapstructure:"token" yaml:"token" json:"token"`
	Repository        string        `mapstructure:"repository" yaml:"repository" json:"repository"`
	APIURL            string        `mapstructure:"api_url" yaml:"api_url" json:"api_url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RateLimitConfig configures the per-user sliding window.
type RateLimitConfig struct {
	MaxSubmissions int           `mapstructure:"max_submissions" yaml:"max_submissions" json:"max_submissions"`
	Window         time.Duration `mapstructure:"window" yaml:"window" json:"window"`

	// SweepInterval of zero means twice the window.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" json:"sweep_interval"`
}

// Auth modes.
const (
	AuthModeHeader  = "header"
	AuthModeSession = "session"
)

// AuthConfig selects how the caller's identity is resolved.
type AuthConfig struct {
	Mode    string        `mapstructure:"mode" yaml:"mode" json:"mode"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// SessionURL is the auth server endpoint used in session mode.
	SessionURL string `mapstructure:"session_url" yaml:"session_url" json:"session_url"`

	// Header mode: identity headers set by a trusted proxy.
	UserIDHeader string `mapstructure:"user_id_header" yaml:"user_id_header" json:"user_id_header"`
	NameHeader   string `mapstructure:"name_header" yaml:"name_header" json:"name_header"`
	EmailHeader  string `mapstructure:"email_header" yaml:"email_header" json:"email_header"`
	SecretHeader string `mapstructure:"secret_header" yaml:"secret_header" json:"secret_header"`
	Secret       string `mapstructure:"secret" yaml:"secret" json:"secret"`
}

// Store drivers.
const (
	StoreDriverMemory = "memory"
	StoreDriverLibsql = "libsql"
	StoreDriverRedis  = "redis"
)

// StoreConfig selects the rate window backend. Path, URL and AuthToken
// apply to libsql.
type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver" json:"driver"`
	Path      string `mapstructure:"path" yaml:"path" json:"path"`
	URL       string `mapstructure:"url" yaml:"url" json:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token" json:"auth_token"`
}

// RedisConfig is used when store.driver is redis.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Username  string `mapstructure:"username" yaml:"username" json:"username"`
	Password  string `mapstructure:"password" yaml:"password" json:"password"`
	DB        int    `mapstructure:"db" yaml:"db" json:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

const redacted = "[REDACTED]"

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}

	out := c
	out.Server.AdminToken = mask(c.Server.AdminToken)
	out.Feedback.GitHub.Token = mask(c.Feedback.GitHub.Token)
	out.Auth.Secret = mask(c.Auth.Secret)
	out.Store.AuthToken = mask(c.Store.AuthToken)
	out.Redis.Password = mask(c.Redis.Password)
	return out
}
