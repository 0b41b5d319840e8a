package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultListLimit = 50

// SQLiteNotificationStore implements NotificationStore backed by SQLite.
type SQLiteNotificationStore struct {
	db *sql.DB
}

// NewSQLiteNotificationStore returns a new SQLiteNotificationStore.
func NewSQLiteNotificationStore(db *sql.DB) *SQLiteNotificationStore {
	return &SQLiteNotificationStore{db: db}
}

// LogNotification inserts a dispatch outcome into the database.
func (s *SQLiteNotificationStore) LogNotification(ctx context.Context, entry NotificationLogEntry) error {
	if entry.Attempts == "" {
		entry.Attempts = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_log
			(inquiry_id, channel, message_id, status, error_kind, error_msg, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.InquiryID, entry.Channel, entry.MessageID, entry.Status,
		entry.ErrorKind, entry.ErrorMsg, entry.Attempts, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification log: %w", err)
	}
	return nil
}

// ListNotifications returns the most recent log entries ordered by created_at descending.
func (s *SQLiteNotificationStore) ListNotifications(ctx context.Context, limit int) (entries []NotificationLogEntry, err error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inquiry_id, channel, message_id, status, error_kind, error_msg, attempts, created_at
		FROM notification_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notification log: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var e NotificationLogEntry
		if err := rows.Scan(&e.ID, &e.InquiryID, &e.Channel, &e.MessageID, &e.Status,
			&e.ErrorKind, &e.ErrorMsg, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification log rows: %w", err)
	}
	return entries, nil
}

// DeleteNotificationsBefore removes log entries older than before.
func (s *SQLiteNotificationStore) DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notification_log WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting notification log entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted notification log entries: %w", err)
	}
	return n, nil
}
