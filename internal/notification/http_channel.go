package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// BrevoEndpoint is the Brevo transactional email API.
	BrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

	// DefaultHTTPTimeout bounds a single Brevo API call.
	DefaultHTTPTimeout = 12 * time.Second

	brevoSentinelID = "brevo-api"
	maxResponseRead = 64 << 10
)

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoPayload struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent"`
	ReplyTo     *brevoAddress  `json:"replyTo,omitempty"`
}

type brevoResponse struct {
	MessageID  string   `json:"messageId"`
	MessageIDs []string `json:"messageIds"`
}

// HTTPChannel sends notifications through the Brevo HTTP API.
type HTTPChannel struct {
	client   *http.Client
	endpoint string
}

// HTTPOption customises an HTTPChannel.
type HTTPOption func(*HTTPChannel)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPChannel) {
		if c != nil {
			h.client = c
		}
	}
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) HTTPOption {
	return func(h *HTTPChannel) {
		if url != "" {
			h.endpoint = url
		}
	}
}

// NewHTTPChannel returns an HTTPChannel targeting BrevoEndpoint.
func NewHTTPChannel(opts ...HTTPOption) *HTTPChannel {
	h := &HTTPChannel{client: &http.Client{}, endpoint: BrevoEndpoint}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the channel identifier.
func (h *HTTPChannel) Name() string { return ChannelHTTPAPI }

// Send issues exactly one API call, cancelled after deadline.
func (h *HTTPChannel) Send(ctx context.Context, cfg *HTTPConfig, req *Request, deadline time.Duration) (*Outcome, error) {
	if cfg == nil {
		return nil, unconfigured(ChannelHTTPAPI, "http api settings missing")
	}
	to := req.recipient(cfg.Recipient)
	if to == "" {
		return nil, unconfigured(ChannelHTTPAPI, "no recipient on request and BREVO_RECIPIENT unset")
	}

	body, err := json.Marshal(buildBrevoPayload(cfg, req, to))
	if err != nil {
		return nil, &DispatchError{Kind: KindTransportFailure, Channel: ChannelHTTPAPI, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	if deadline <= 0 {
		deadline = DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &DispatchError{Kind: KindTransportFailure, Channel: ChannelHTTPAPI, Err: fmt.Errorf("building request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("api-key", cfg.APIKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &DispatchError{Kind: KindTimeout, Channel: ChannelHTTPAPI, Err: fmt.Errorf("brevo api after %s: %w", deadline, ctx.Err())}
		}
		return nil, classify(ChannelHTTPAPI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseRead))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DispatchError{
			Kind:       KindProviderRejected,
			Channel:    ChannelHTTPAPI,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), maxBodyExcerpt),
		}
	}
	if readErr != nil && ctx.Err() != nil {
		return nil, &DispatchError{Kind: KindTimeout, Channel: ChannelHTTPAPI, Err: readErr}
	}

	return &Outcome{Channel: ChannelHTTPAPI, MessageID: brevoMessageID(raw)}, nil
}

func buildBrevoPayload(cfg *HTTPConfig, req *Request, to string) brevoPayload {
	p := brevoPayload{
		Sender:      brevoAddress{Email: cfg.SenderEmail, Name: cfg.SenderName},
		To:          []brevoAddress{{Email: to}},
		Subject:     req.subject(),
		HTMLContent: req.htmlBody(),
		TextContent: req.Text,
	}
	if rt := req.replyTo(); rt != "" {
		p.ReplyTo = &brevoAddress{Email: rt}
	}
	return p
}

// brevoMessageID extracts the provider id. The body is optional on success.
func brevoMessageID(raw []byte) string {
	var r brevoResponse
	if err := json.Unmarshal(raw, &r); err == nil {
		if r.MessageID != "" {
			return r.MessageID
		}
		if len(r.MessageIDs) > 0 && r.MessageIDs[0] != "" {
			return r.MessageIDs[0]
		}
	}
	return brevoSentinelID
}
