// Package logger provides the structured slog logger used by the service.
// Logs are written as JSON to a size-rotated file:
//
//	<logDir>/system.log: application events, dispatch attempts, HTTP requests
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for system.log.
const (
	maxSizeMB  = 20
	maxBackups = 5
	maxAgeDays = 30
)

// NewSystemLogger creates a JSON slog.Logger that writes to <logDir>/system.log,
// rotated by lumberjack. When mirror is non-nil every record is also written
// to it. The directory is created if it does not exist. The returned closer
// releases the log file.
func NewSystemLogger(logDir string, level slog.Level, mirror io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "system.log"),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	var w io.Writer = file
	if mirror != nil {
		w = io.MultiWriter(file, mirror)
	}
	return New(w, level), file, nil
}

// New creates a JSON slog.Logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
