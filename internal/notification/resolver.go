package notification

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
)

const defaultSenderName = "Web"

// channelEnv mirrors the process environment. Every field is a string so that
// a malformed value can never make resolution fail.
type channelEnv struct {
	BrevoAPIKey      string `envconfig:"BREVO_API_KEY"`
	BrevoSenderEmail string `envconfig:"BREVO_SENDER_EMAIL"`
	BrevoSenderName  string `envconfig:"BREVO_SENDER_NAME"`
	BrevoRecipient   string `envconfig:"BREVO_RECIPIENT"`

	SMTPHost      string `envconfig:"SMTP_HOST"`
	SMTPUser      string `envconfig:"SMTP_USER"`
	SMTPPass      string `envconfig:"SMTP_PASS"`
	SMTPFrom      string `envconfig:"SMTP_FROM"`
	SMTPRecipient string `envconfig:"SMTP_RECIPIENT"`
	SMTPSecure    string `envconfig:"SMTP_SECURE"`
	SMTPFamily    string `envconfig:"SMTP_FAMILY"`
}

// ConfigSource yields the channels usable for a dispatch.
type ConfigSource interface {
	Resolve() Channels
}

// StaticConfig is a ConfigSource returning fixed channels.
type StaticConfig Channels

// Resolve returns the fixed channels.
func (s StaticConfig) Resolve() Channels { return Channels(s) }

// Resolver reads channel settings from the environment once and caches them
// for the life of the process.
type Resolver struct {
	once     sync.Once
	ready    atomic.Bool
	channels Channels
	logger   *slog.Logger
}

// NewResolver returns a Resolver. The environment is not read until the first
// call to Resolve.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the cached channels, reading the environment on first use.
func (r *Resolver) Resolve() Channels {
	r.once.Do(func() {
		r.channels = ResolveEnv(r.logger)
		r.ready.Store(true)
		r.logger.Info("notification channels resolved",
			slog.Bool("http_api", r.channels.HTTP != nil),
			slog.Bool("smtp", r.channels.SMTP != nil),
		)
	})
	return r.channels
}

// Ready reports whether the configuration has been resolved.
func (r *Resolver) Ready() bool {
	return r.ready.Load()
}

// ResolveEnv reads and validates channel settings from the environment
// without caching.
func ResolveEnv(logger *slog.Logger) Channels {
	var env channelEnv
	if err := envconfig.Process("", &env); err != nil {
		// Only string fields are declared, so this is not expected.
		if logger != nil {
			logger.Warn("reading notification environment", "error", err)
		}
		return Channels{}
	}
	env.trim()
	return Channels{HTTP: env.httpConfig(), SMTP: env.smtpConfig()}
}

func (e *channelEnv) trim() {
	for _, p := range []*string{
		&e.BrevoAPIKey, &e.BrevoSenderEmail, &e.BrevoSenderName, &e.BrevoRecipient,
		&e.SMTPHost, &e.SMTPUser, &e.SMTPPass, &e.SMTPFrom, &e.SMTPRecipient,
		&e.SMTPSecure, &e.SMTPFamily,
	} {
		*p = strings.TrimSpace(*p)
	}
}

func (e *channelEnv) httpConfig() *HTTPConfig {
	if e.BrevoAPIKey == "" || e.BrevoSenderEmail == "" {
		return nil
	}
	name := e.BrevoSenderName
	if name == "" {
		name = defaultSenderName
	}
	return &HTTPConfig{
		APIKey:      e.BrevoAPIKey,
		SenderEmail: e.BrevoSenderEmail,
		SenderName:  name,
		Recipient:   e.BrevoRecipient,
	}
}

func (e *channelEnv) smtpConfig() *SMTPConfig {
	if e.SMTPHost == "" || e.SMTPUser == "" || e.SMTPPass == "" || e.SMTPFrom == "" || e.SMTPRecipient == "" {
		return nil
	}
	profiles := DefaultProfiles()
	if strings.EqualFold(e.SMTPSecure, "true") {
		profiles[0], profiles[1] = profiles[1], profiles[0]
	}
	return &SMTPConfig{
		Host:      e.SMTPHost,
		Username:  e.SMTPUser,
		Password:  e.SMTPPass,
		From:      e.SMTPFrom,
		Recipient: e.SMTPRecipient,
		Network:   networkForFamily(e.SMTPFamily),
		Profiles:  profiles,
	}
}

// networkForFamily maps SMTP_FAMILY to a dial network. IPv4 is the default.
func networkForFamily(family string) string {
	switch family {
	case "6":
		return "tcp6"
	case "0":
		return "tcp"
	default:
		return "tcp4"
	}
}
