package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/shaharia-lab/inquiry-dispatch/internal/eventbus"
	"github.com/shaharia-lab/inquiry-dispatch/internal/notification"
	"github.com/shaharia-lab/inquiry-dispatch/internal/storage"
)

const (
	maxNameLength    = 120
	maxSubjectLength = 200
	maxMessageLength = 5000
)

// Inquiry is a contact-form submission from the storefront.
type Inquiry struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Receipt identifies a delivered inquiry.
type Receipt struct {
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	MessageID string `json:"messageId"`
}

// ChannelSummary describes the resolved notification channels without
// exposing secrets.
type ChannelSummary struct {
	HTTPAPI        bool     `json:"has_brevo_api" yaml:"has_brevo_api"`
	BrevoSender    string   `json:"brevo_sender" yaml:"brevo_sender"`
	BrevoRecipient string   `json:"brevo_recipient" yaml:"brevo_recipient"`
	SMTP           bool     `json:"has_smtp" yaml:"has_smtp"`
	SMTPHost       string   `json:"smtp_host" yaml:"smtp_host"`
	SMTPFrom       string   `json:"smtp_from" yaml:"smtp_from"`
	SMTPUser       string   `json:"smtp_user" yaml:"smtp_user"`
	SMTPProfiles   []string `json:"smtp_profiles" yaml:"smtp_profiles"`
}

// Notifier delivers a notification request over the configured channels.
type Notifier interface {
	Dispatch(ctx context.Context, req *notification.Request) (*notification.Outcome, error)
}

// SMTPVerifier checks that the SMTP relay accepts the configured credentials.
type SMTPVerifier interface {
	Verify(ctx context.Context, cfg *notification.SMTPConfig, deadline time.Duration) (string, error)
}

// InquiryService accepts inquiries and turns them into notifications.
type InquiryService interface {
	// Submit validates the inquiry and delivers it to the shop owner.
	Submit(ctx context.Context, in Inquiry) (*Receipt, error)
	// VerifySMTP connects and authenticates against the SMTP relay without
	// sending mail. It returns the channel that worked.
	VerifySMTP(ctx context.Context) (string, error)
	// Channels summarises the resolved channel configuration.
	Channels() ChannelSummary
	// ListDeliveries returns the most recent delivery log entries.
	ListDeliveries(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error)
}

// InquiryDeps holds the collaborators of the inquiry service.
type InquiryDeps struct {
	Config      notification.ConfigSource
	Notifier    Notifier
	Verifier    SMTPVerifier
	Store       storage.NotificationStore
	Publisher   EventPublisher
	Logger      *slog.Logger
	SMTPTimeout time.Duration
}

// inquiryServiceImpl implements InquiryService.
type inquiryServiceImpl struct {
	deps InquiryDeps
}

// NewInquiryService creates a new InquiryService. Store and Publisher are optional.
func NewInquiryService(deps InquiryDeps) InquiryService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SMTPTimeout <= 0 {
		deps.SMTPTimeout = notification.DefaultSMTPAttemptTimeout
	}
	return &inquiryServiceImpl{deps: deps}
}

// Submit validates in, dispatches the resulting notification and publishes
// the outcome on the event bus.
func (s *inquiryServiceImpl) Submit(ctx context.Context, in Inquiry) (*Receipt, error) {
	in, err := normalizeInquiry(in)
	if err != nil {
		return nil, err
	}

	content := notification.InquiryContent{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}
	html, err := notification.BuildInquiryHTML(content)
	if err != nil {
		return nil, fmt.Errorf("rendering inquiry: %w", err)
	}
	req := &notification.Request{
		From:    fmt.Sprintf("%s <%s>", in.Name, in.Email),
		Subject: notification.InquirySubject(content),
		HTML:    html,
		Text:    notification.BuildInquiryText(content),
		ReplyTo: in.Email,
	}

	id := uuid.NewString()
	logger := s.deps.Logger.With("inquiry_id", id)

	out, err := s.deps.Notifier.Dispatch(ctx, req)
	if err != nil {
		logger.Error("inquiry notification failed", "error", err)
		s.publishFailure(id, err)
		return nil, err
	}

	logger.Info("inquiry notification sent", "channel", out.Channel, "message_id", out.MessageID)
	s.publish(eventbus.TypeInquirySent, map[string]string{
		payloadInquiryID: id,
		payloadChannel:   out.Channel,
		payloadMessageID: out.MessageID,
	})
	return &Receipt{ID: id, Channel: out.Channel, MessageID: out.MessageID}, nil
}

func (s *inquiryServiceImpl) publishFailure(id string, err error) {
	payload := map[string]string{
		payloadInquiryID: id,
		payloadError:     err.Error(),
	}
	var de *notification.DispatchError
	if errors.As(err, &de) {
		payload[payloadChannel] = de.Channel
		payload[payloadErrorKind] = string(de.Kind)
		if len(de.Attempts) > 0 {
			if raw, mErr := json.Marshal(de.Attempts); mErr == nil {
				payload[payloadAttempts] = string(raw)
			}
		}
	}
	s.publish(eventbus.TypeInquiryFailed, payload)
}

func (s *inquiryServiceImpl) publish(eventType string, payload map[string]string) {
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(eventType, payload)
	}
}

// VerifySMTP checks the SMTP relay with the resolved SMTP settings.
func (s *inquiryServiceImpl) VerifySMTP(ctx context.Context) (string, error) {
	channels := s.deps.Config.Resolve()
	return s.deps.Verifier.Verify(ctx, channels.SMTP, s.deps.SMTPTimeout)
}

// Channels summarises which channels are available.
func (s *inquiryServiceImpl) Channels() ChannelSummary {
	channels := s.deps.Config.Resolve()
	var sum ChannelSummary
	if h := channels.HTTP; h != nil {
		sum.HTTPAPI = true
		sum.BrevoSender = h.SenderEmail
		sum.BrevoRecipient = h.Recipient
	}
	if m := channels.SMTP; m != nil {
		sum.SMTP = true
		sum.SMTPHost = m.Host
		sum.SMTPFrom = m.From
		if m.Username != "" {
			sum.SMTPUser = "(set)"
		}
		for _, p := range m.Profiles {
			sum.SMTPProfiles = append(sum.SMTPProfiles, p.Channel())
		}
	}
	return sum
}

// ListDeliveries returns the most recent delivery log entries.
func (s *inquiryServiceImpl) ListDeliveries(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error) {
	if s.deps.Store == nil {
		return []storage.NotificationLogEntry{}, nil
	}
	return s.deps.Store.ListNotifications(ctx, limit)
}

// normalizeInquiry trims the inquiry fields and validates them.
func normalizeInquiry(in Inquiry) (Inquiry, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	switch {
	case in.Name == "":
		return in, &ValidationError{Field: "name", Message: "name is required"}
	case utf8.RuneCountInString(in.Name) > maxNameLength:
		return in, &ValidationError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxNameLength)}
	case strings.ContainsAny(in.Name, "<>\r\n"):
		return in, &ValidationError{Field: "name", Message: "name contains invalid characters"}
	case in.Email == "":
		return in, &ValidationError{Field: "email", Message: "email is required"}
	case !validEmail(in.Email):
		return in, &ValidationError{Field: "email", Message: "email is not a valid address"}
	case strings.ContainsAny(in.Subject, "\r\n"):
		return in, &ValidationError{Field: "subject", Message: "subject must be a single line"}
	case utf8.RuneCountInString(in.Subject) > maxSubjectLength:
		return in, &ValidationError{Field: "subject", Message: fmt.Sprintf("subject must be at most %d characters", maxSubjectLength)}
	case in.Message == "":
		return in, &ValidationError{Field: "message", Message: "message is required"}
	case utf8.RuneCountInString(in.Message) > maxMessageLength:
		return in, &ValidationError{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", maxMessageLength)}
	}
	return in, nil
}

// validEmail accepts a bare address only, without display name.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Name == "" && addr.Address == s
}
