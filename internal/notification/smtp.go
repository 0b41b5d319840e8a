package notification

import (
	"context"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultSMTPAttemptTimeout bounds one transport-profile attempt end to end.
const DefaultSMTPAttemptTimeout = 40 * time.Second

// MailClient is the part of *mail.Client used by SMTPChannel.
type MailClient interface {
	DialWithContext(ctx context.Context) error
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	Close() error
}

// ClientFactory builds the client for one profile attempt that must finish
// by deadline.
type ClientFactory func(cfg *SMTPConfig, profile TransportProfile, deadline time.Time) (MailClient, error)

// SMTPChannel delivers notifications through an SMTP relay, trying each
// transport profile in order until one succeeds.
type SMTPChannel struct {
	timeouts  SMTPTimeouts
	rootCAs   *x509.CertPool
	newClient ClientFactory
}

// SMTPOption customises an SMTPChannel.
type SMTPOption func(*SMTPChannel)

// WithSMTPTimeouts overrides the per-stage timeouts.
func WithSMTPTimeouts(t SMTPTimeouts) SMTPOption {
	return func(s *SMTPChannel) { s.timeouts = t }
}

// WithRootCAs trusts pool instead of the system roots when verifying the
// relay's certificate. Relays behind a private CA need it.
func WithRootCAs(pool *x509.CertPool) SMTPOption {
	return func(s *SMTPChannel) { s.rootCAs = pool }
}

// WithClientFactory replaces the go-mail client constructor.
func WithClientFactory(f ClientFactory) SMTPOption {
	return func(s *SMTPChannel) {
		if f != nil {
			s.newClient = f
		}
	}
}

// NewSMTPChannel returns an SMTPChannel backed by go-mail.
func NewSMTPChannel(opts ...SMTPOption) *SMTPChannel {
	s := &SMTPChannel{timeouts: DefaultSMTPTimeouts()}
	s.newClient = s.goMailClient
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the channel family identifier.
func (s *SMTPChannel) Name() string { return channelSMTP }

// Send tries every profile in order. When all fail, the last profile's error
// is returned and every profile failure is listed in its Attempts.
func (s *SMTPChannel) Send(ctx context.Context, cfg *SMTPConfig, req *Request, deadline time.Duration) (*Outcome, error) {
	if cfg == nil || len(cfg.Profiles) == 0 {
		return nil, unconfigured(channelSMTP, "smtp settings missing")
	}
	if deadline <= 0 {
		deadline = DefaultSMTPAttemptTimeout
	}

	var (
		last     *DispatchError
		attempts []Attempt
	)
	for _, p := range cfg.Profiles {
		out, derr := s.sendProfile(ctx, cfg, p, req, deadline)
		if derr == nil {
			return out, nil
		}
		attempts = append(attempts, derr.attempt())
		last = derr
	}
	last.Attempts = attempts
	return nil, last
}

func (s *SMTPChannel) sendProfile(ctx context.Context, cfg *SMTPConfig, p TransportProfile, req *Request, deadline time.Duration) (*Outcome, *DispatchError) {
	channel := p.Channel()

	msg, err := buildMessage(cfg, req)
	if err != nil {
		return nil, unconfigured(channel, "building message: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	until, _ := ctx.Deadline()

	client, err := s.newClient(cfg, p, until)
	if err != nil {
		return nil, &DispatchError{Kind: KindTransportFailure, Channel: channel, Err: fmt.Errorf("creating mail client: %w", err)}
	}
	defer func() { _ = client.Close() }()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return nil, &DispatchError{Kind: KindTimeout, Channel: channel, Err: err}
		}
		return nil, classify(channel, err)
	}

	id := strings.Trim(msg.GetMessageID(), "<>")
	if id == "" {
		id = p.sentinelID()
	}
	return &Outcome{Channel: channel, MessageID: id}, nil
}

// Verify connects, negotiates TLS and authenticates on each profile in order
// without sending anything. It returns the channel of the first profile that
// works.
func (s *SMTPChannel) Verify(ctx context.Context, cfg *SMTPConfig, deadline time.Duration) (string, error) {
	if cfg == nil || len(cfg.Profiles) == 0 {
		return "", unconfigured(channelSMTP, "smtp settings missing")
	}
	if deadline <= 0 {
		deadline = DefaultSMTPAttemptTimeout
	}

	var (
		last     *DispatchError
		attempts []Attempt
	)
	for _, p := range cfg.Profiles {
		derr := s.verifyProfile(ctx, cfg, p, deadline)
		if derr == nil {
			return p.Channel(), nil
		}
		attempts = append(attempts, derr.attempt())
		last = derr
	}
	last.Attempts = attempts
	return "", last
}

func (s *SMTPChannel) verifyProfile(ctx context.Context, cfg *SMTPConfig, p TransportProfile, deadline time.Duration) *DispatchError {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	until, _ := ctx.Deadline()

	client, err := s.newClient(cfg, p, until)
	if err != nil {
		return &DispatchError{Kind: KindTransportFailure, Channel: p.Channel(), Err: err}
	}
	defer func() { _ = client.Close() }()
	if err := client.DialWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return &DispatchError{Kind: KindTimeout, Channel: p.Channel(), Err: err}
		}
		return classify(p.Channel(), err)
	}
	return nil
}

// dialedClient is a go-mail client whose Close also releases the
// connections opened by its dialer.
type dialedClient struct {
	*mail.Client
	dialer *profileDialer
}

// Close sends QUIT when a session is open and closes the socket either way.
func (c *dialedClient) Close() error {
	err := c.Client.Close()
	_ = c.dialer.Close()
	return err
}

// goMailClient is the default ClientFactory.
func (s *SMTPChannel) goMailClient(cfg *SMTPConfig, p TransportProfile, deadline time.Time) (MailClient, error) {
	tlsConfig := smtpTLSConfig(cfg.Host)
	tlsConfig.RootCAs = s.rootCAs
	dialer := &profileDialer{
		network:      cfg.Network,
		timeouts:     s.timeouts,
		implicit:     p.Mode == TLSModeImplicit,
		tls:          tlsConfig,
		hardDeadline: deadline,
	}
	if dialer.network == "" {
		dialer.network = "tcp4"
	}

	opts := []mail.Option{
		mail.WithPort(p.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(s.timeouts.Connect),
		mail.WithTLSConfig(tlsConfig),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithDialContextFunc(dialer.DialContext),
	}
	if p.Mode == TLSModeImplicit {
		// The dialer already speaks TLS; go-mail must not attempt STARTTLS.
		opts = append(opts, mail.WithSSL())
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return &dialedClient{Client: client, dialer: dialer}, nil
}

// buildMessage renders the request as a MIME message. The envelope sender is
// always the configured From address; the request sender only contributes
// its display name and the Reply-To address.
func buildMessage(cfg *SMTPConfig, req *Request) (*mail.Msg, error) {
	m := mail.NewMsg()
	if name := req.senderName(); name != "" {
		if err := m.FromFormat(name, cfg.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	to := req.recipient(cfg.Recipient)
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if rt := req.replyTo(); rt != "" {
		// A malformed reply-to must not block delivery.
		_ = m.ReplyTo(rt)
	}

	m.Subject(req.subject())
	m.SetDate()
	m.SetMessageID()

	htmlBody := req.htmlBody()
	if strings.TrimSpace(req.Text) != "" {
		m.SetBodyString(mail.TypeTextPlain, req.Text)
		m.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	} else {
		m.SetBodyString(mail.TypeTextHTML, htmlBody)
	}
	return m, nil
}
