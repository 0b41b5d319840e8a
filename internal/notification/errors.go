package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// ErrorKind classifies a dispatch failure.
type ErrorKind string

const (
	KindUnconfigured     ErrorKind = "unconfigured"
	KindTimeout          ErrorKind = "timeout"
	KindProviderRejected ErrorKind = "provider_rejected"
	KindTransportFailure ErrorKind = "transport_failure"
)

// Sentinel errors matched by errors.Is against a *DispatchError of the same kind.
var (
	ErrUnconfigured     = errors.New("notification channel not configured")
	ErrTimeout          = errors.New("notification channel timed out")
	ErrProviderRejected = errors.New("notification provider rejected the request")
	ErrTransportFailure = errors.New("notification transport failure")
)

// maxBodyExcerpt bounds the provider response body kept for diagnostics.
const maxBodyExcerpt = 400

// DispatchError is a typed channel failure. The adapter that detects the
// failure creates it; the Dispatcher returns it unmodified apart from
// attaching the list of earlier failed attempts.
type DispatchError struct {
	Kind    ErrorKind
	Channel string
	// StatusCode and Body are set for provider rejections.
	StatusCode int
	Body       string
	Err        error
	// Attempts lists every failed attempt of the dispatch in order, the
	// last entry being this error's own attempt.
	Attempts []Attempt
}

// Attempt records one failed channel or transport-profile attempt.
type Attempt struct {
	Channel string    `json:"channel"`
	Kind    ErrorKind `json:"kind"`
	Error   string    `json:"error"`
}

func (e *DispatchError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Channel != "" {
		b.WriteString(" via ")
		b.WriteString(e.Channel)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
		if e.Body != "" {
			fmt.Fprintf(&b, ": %s", e.Body)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Is matches the sentinel error for the error's kind.
func (e *DispatchError) Is(target error) bool {
	switch target {
	case ErrUnconfigured:
		return e.Kind == KindUnconfigured
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrProviderRejected:
		return e.Kind == KindProviderRejected
	case ErrTransportFailure:
		return e.Kind == KindTransportFailure
	}
	return false
}

func (e *DispatchError) attempt() Attempt {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	}
	return Attempt{Channel: e.Channel, Kind: e.Kind, Error: msg}
}

// AsDispatchError extracts a *DispatchError from err.
func AsDispatchError(err error) (*DispatchError, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func unconfigured(channel, format string, args ...any) *DispatchError {
	return &DispatchError{Kind: KindUnconfigured, Channel: channel, Err: fmt.Errorf(format, args...)}
}

// classify turns a network-level error into a timeout or transport failure.
func classify(channel string, err error) *DispatchError {
	kind := KindTransportFailure
	if isTimeout(err) {
		kind = KindTimeout
	}
	return &DispatchError{Kind: kind, Channel: channel, Err: err}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "i/o timeout")
}

// truncate trims s to at most limit runes.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
