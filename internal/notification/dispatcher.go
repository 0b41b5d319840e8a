package notification

import (
	"context"
	"log/slog"
	"time"
)

// HTTPSender is the HTTP API channel as seen by the Dispatcher.
type HTTPSender interface {
	Send(ctx context.Context, cfg *HTTPConfig, req *Request, deadline time.Duration) (*Outcome, error)
}

// SMTPSender is the SMTP channel as seen by the Dispatcher.
type SMTPSender interface {
	Send(ctx context.Context, cfg *SMTPConfig, req *Request, deadline time.Duration) (*Outcome, error)
}

// Dispatcher delivers a Request over the configured channels: the HTTP API
// first, then SMTP, stopping at the first success. It holds no per-dispatch
// state and is safe for concurrent use.
type Dispatcher struct {
	config      ConfigSource
	http        HTTPSender
	smtp        SMTPSender
	httpTimeout time.Duration
	smtpTimeout time.Duration
	metrics     *Metrics
	logger      *slog.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPSender replaces the HTTP API channel.
func WithHTTPSender(s HTTPSender) DispatcherOption {
	return func(d *Dispatcher) { d.http = s }
}

// WithSMTPSender replaces the SMTP channel.
func WithSMTPSender(s SMTPSender) DispatcherOption {
	return func(d *Dispatcher) { d.smtp = s }
}

// WithTimeouts sets the HTTP call deadline and the per-profile SMTP deadline.
// Zero values keep the defaults.
func WithTimeouts(httpTimeout, smtpTimeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if httpTimeout > 0 {
			d.httpTimeout = httpTimeout
		}
		if smtpTimeout > 0 {
			d.smtpTimeout = smtpTimeout
		}
	}
}

// WithMetrics records attempt metrics.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger for attempt failures.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher returns a Dispatcher reading channels from config.
func NewDispatcher(config ConfigSource, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		config:      config,
		http:        NewHTTPChannel(),
		smtp:        NewSMTPChannel(),
		httpTimeout: DefaultHTTPTimeout,
		smtpTimeout: DefaultSMTPAttemptTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch performs one pass over the configured channels. A started
// dispatch is not cancelled by ctx; every channel attempt owns its deadline.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Outcome, error) {
	out, err := d.dispatch(context.WithoutCancel(ctx), req)
	d.metrics.observeDispatch(err)
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (*Outcome, error) {
	channels := d.config.Resolve()
	if !channels.Any() {
		return nil, unconfigured("", "no notification channel configured (BREVO_API_KEY or SMTP_*)")
	}

	var attempts []Attempt
	if channels.HTTP != nil {
		start := time.Now()
		out, err := d.http.Send(ctx, channels.HTTP, req, d.httpTimeout)
		d.metrics.observeAttempt(ChannelHTTPAPI, err, time.Since(start))
		if err == nil {
			return out, nil
		}
		d.logFailure(ChannelHTTPAPI, err)
		if channels.SMTP == nil {
			return nil, err
		}
		attempts = append(attempts, attemptsOf(ChannelHTTPAPI, err)...)
	}

	start := time.Now()
	out, err := d.smtp.Send(ctx, channels.SMTP, req, d.smtpTimeout)
	d.metrics.observeAttempt(channelSMTP, err, time.Since(start))
	if err == nil {
		return out, nil
	}
	d.logFailure(channelSMTP, err)

	if de, ok := AsDispatchError(err); ok {
		de.Attempts = append(attempts, attemptsOf(channelSMTP, de)...)
	}
	return nil, err
}

func (d *Dispatcher) logFailure(channel string, err error) {
	attrs := []any{slog.String("channel", channel), slog.String("error", err.Error())}
	if de, ok := AsDispatchError(err); ok {
		attrs = append(attrs, slog.String("kind", string(de.Kind)))
		if de.StatusCode != 0 {
			attrs = append(attrs, slog.Int("status", de.StatusCode))
		}
	}
	d.logger.Warn("notification channel failed", attrs...)
}

// attemptsOf returns the attempt list carried by err, or a single entry
// describing err.
func attemptsOf(channel string, err error) []Attempt {
	de, ok := AsDispatchError(err)
	if !ok {
		return []Attempt{{Channel: channel, Kind: KindTransportFailure, Error: err.Error()}}
	}
	if len(de.Attempts) > 0 {
		return de.Attempts
	}
	return []Attempt{de.attempt()}
}
