package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment variables.
// Notification channel credentials are not part of it; they are read by
// notification.Resolver.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the root data directory. Defaults to ~/.inquiryd.
	DataDir string `envconfig:"INQUIRYD_DATA_DIR"`

	// Env names the deployment environment reported by the debug endpoint.
	Env string `envconfig:"APP_ENV" default:"development"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// FrontendHost is the storefront origin allowed by CORS in addition to
	// the built-in development and hosting origins.
	FrontendHost string `envconfig:"FRONTEND_HOST"`

	// TrustProxy keys clients by X-Forwarded-For/X-Real-IP instead of the
	// socket address. Set it only behind a reverse proxy.
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`

	// OperatorToken guards the operator endpoints. Empty disables them.
	OperatorToken string `envconfig:"OPERATOR_TOKEN"`

	// InquiryRatePerMinute and InquiryRateBurst limit inquiry submissions per client IP.
	InquiryRatePerMinute int `envconfig:"INQUIRY_RATE_PER_MINUTE" default:"5"`
	InquiryRateBurst     int `envconfig:"INQUIRY_RATE_BURST" default:"3"`

	// HTTPAPITimeout bounds a single Brevo API call.
	HTTPAPITimeout time.Duration `envconfig:"HTTP_API_TIMEOUT" default:"12s"`

	// SMTPAttemptTimeout bounds one SMTP transport-profile attempt.
	SMTPAttemptTimeout time.Duration `envconfig:"SMTP_ATTEMPT_TIMEOUT" default:"40s"`

	// LogRetention is how long delivery log entries are kept. Zero keeps them forever.
	LogRetention time.Duration `envconfig:"NOTIFICATION_LOG_RETENTION" default:"720h"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.inquiryd if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".inquiryd")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.inquiryd/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite delivery log database.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "inquiryd.db")
}
