package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaharia-lab/inquiry-dispatch/internal/eventbus"
	"github.com/shaharia-lab/inquiry-dispatch/internal/storage"
)

const recordTimeout = 5 * time.Second

// DeliveryRecorder writes inquiry notification events to the delivery log.
type DeliveryRecorder struct {
	store  storage.NotificationStore
	logger *slog.Logger
}

// NewDeliveryRecorder returns a recorder backed by store.
func NewDeliveryRecorder(store storage.NotificationStore, logger *slog.Logger) *DeliveryRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryRecorder{store: store, logger: logger}
}

// Handle is an eventbus.Listener. Events other than inquiry notification
// outcomes are ignored.
func (r *DeliveryRecorder) Handle(e eventbus.Event) {
	var status string
	switch e.Type {
	case eventbus.TypeInquirySent:
		status = storage.StatusSent
	case eventbus.TypeInquiryFailed:
		status = storage.StatusFailed
	default:
		return
	}

	entry := storage.NotificationLogEntry{
		InquiryID: e.Payload[payloadInquiryID],
		Channel:   e.Payload[payloadChannel],
		MessageID: e.Payload[payloadMessageID],
		Status:    status,
		ErrorKind: e.Payload[payloadErrorKind],
		ErrorMsg:  e.Payload[payloadError],
		Attempts:  e.Payload[payloadAttempts],
		CreatedAt: e.Timestamp,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.LogNotification(ctx, entry); err != nil {
		r.logger.Error("failed to record notification", "inquiry_id", entry.InquiryID, "error", err)
	}
}
