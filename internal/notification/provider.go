// Package notification delivers inquiry notifications to an operator inbox.
// A Dispatcher tries the Brevo HTTP API first and falls back to an SMTP relay,
// stopping at the first channel that accepts the message.
package notification

import (
	"html"
	"regexp"
	"strings"
)

// Channel identifiers reported in an Outcome.
const (
	ChannelHTTPAPI = "http-api"
	channelSMTP    = "smtp"
)

const (
	// DefaultSubject is used when a request carries no subject line.
	DefaultSubject = "Nueva consulta"
	// PlaceholderHTML replaces an empty message body.
	PlaceholderHTML = "<p>(sin contenido)</p>"
)

var angleAddr = regexp.MustCompile(`<([^>]+)>`)

// Request is a single notification to deliver. It is built by the caller for
// one dispatch and never modified afterwards.
type Request struct {
	// From is the sender identity, either "Name <addr>" or a bare address.
	From string
	// To overrides the channel's default recipient when set.
	To      string
	Subject string
	HTML    string
	Text    string
	// ReplyTo takes precedence over the address embedded in From.
	ReplyTo string
}

// Outcome describes a successful dispatch.
type Outcome struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
}

// subject returns the subject line, defaulting when empty.
func (r *Request) subject() string {
	if s := strings.TrimSpace(r.Subject); s != "" {
		return s
	}
	return DefaultSubject
}

// htmlBody returns the HTML content, falling back to the escaped text body
// wrapped in <pre>, then to PlaceholderHTML.
func (r *Request) htmlBody() string {
	if strings.TrimSpace(r.HTML) != "" {
		return r.HTML
	}
	if strings.TrimSpace(r.Text) != "" {
		return "<pre>" + html.EscapeString(r.Text) + "</pre>"
	}
	return PlaceholderHTML
}

// replyTo resolves the reply-to address: explicit value first, then the
// address inside "Name <addr>". Returns "" when neither is present.
func (r *Request) replyTo() string {
	if rt := strings.TrimSpace(r.ReplyTo); rt != "" {
		return rt
	}
	if m := angleAddr.FindStringSubmatch(r.From); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// senderName returns the display name part of From, if any.
func (r *Request) senderName() string {
	i := strings.Index(r.From, "<")
	if i <= 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(r.From[:i]), `"`)
}

// recipient picks the request recipient or the given channel default.
func (r *Request) recipient(fallback string) string {
	if to := strings.TrimSpace(r.To); to != "" {
		return to
	}
	return fallback
}
