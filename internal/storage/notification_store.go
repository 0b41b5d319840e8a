package storage

import (
	"context"
	"time"
)

// Delivery statuses recorded in the notification log.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// NotificationLogEntry records the outcome of one inquiry dispatch.
type NotificationLogEntry struct {
	ID        int64  `json:"id" yaml:"id"`
	InquiryID string `json:"inquiry_id" yaml:"inquiry_id"`
	Channel   string `json:"channel" yaml:"channel"`
	MessageID string `json:"message_id" yaml:"message_id"`
	Status    string `json:"status" yaml:"status"`
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty" yaml:"error_msg,omitempty"`
	// Attempts is the JSON-encoded list of failed channel attempts.
	Attempts  string    `json:"attempts" yaml:"attempts"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NotificationStore defines the interface for persisting notification delivery logs.
type NotificationStore interface {
	// LogNotification records a dispatch outcome.
	LogNotification(ctx context.Context, entry NotificationLogEntry) error
	// ListNotifications returns the most recent notification log entries, up to limit.
	ListNotifications(ctx context.Context, limit int) ([]NotificationLogEntry, error)
	// DeleteNotificationsBefore removes entries created before the given time
	// and returns how many were deleted.
	DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error)
}
