package service

// EventPublisher is the interface for publishing application events.
// Services use this interface to emit events without depending on a concrete
// event bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Payload keys of inquiry notification events.
const (
	payloadInquiryID = "inquiry_id"
	payloadChannel   = "channel"
	payloadMessageID = "message_id"
	payloadErrorKind = "error_kind"
	payloadError     = "error"
	payloadAttempts  = "attempts"
)
