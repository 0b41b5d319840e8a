package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shaharia-lab/inquiry-dispatch/internal/config"
	"github.com/shaharia-lab/inquiry-dispatch/internal/eventbus"
	"github.com/shaharia-lab/inquiry-dispatch/internal/logger"
	"github.com/shaharia-lab/inquiry-dispatch/internal/notification"
	"github.com/shaharia-lab/inquiry-dispatch/internal/service"
	"github.com/shaharia-lab/inquiry-dispatch/internal/storage"
)

// app wires the long-lived components shared by all subcommands.
type app struct {
	cfg        *config.AppConfig
	logger     *slog.Logger
	registry   *prometheus.Registry
	inquirySvc service.InquiryService
	store      *storage.SQLiteNotificationStore

	logCloser io.Closer
	db        *sql.DB
	bus       eventbus.EventBus
}

// newApp builds the service graph. Log records are mirrored to logMirror when
// it is non-nil.
func newApp(cfg *config.AppConfig, logMirror io.Writer) (*app, error) {
	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel(), logMirror)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{cfg: cfg, logger: sysLogger, logCloser: logCloser}

	db, fresh, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening delivery log: %w", err)
	}
	a.db = db
	if fresh {
		sysLogger.Info("created delivery log database", "path", cfg.DBPath())
	}
	store := storage.NewSQLiteNotificationStore(db)
	a.store = store

	a.bus = eventbus.New(0, eventbus.WithLogger(sysLogger))
	a.bus.Subscribe(service.NewDeliveryRecorder(store, sysLogger).Handle)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	resolver := notification.NewResolver(sysLogger)
	smtpChannel := notification.NewSMTPChannel()
	dispatcher := notification.NewDispatcher(resolver,
		notification.WithSMTPSender(smtpChannel),
		notification.WithTimeouts(cfg.HTTPAPITimeout, cfg.SMTPAttemptTimeout),
		notification.WithMetrics(notification.NewMetrics(a.registry)),
		notification.WithLogger(sysLogger),
	)

	a.inquirySvc = service.NewInquiryService(service.InquiryDeps{
		Config:      resolver,
		Notifier:    dispatcher,
		Verifier:    smtpChannel,
		Store:       store,
		Publisher:   a.bus,
		Logger:      sysLogger,
		SMTPTimeout: cfg.SMTPAttemptTimeout,
	})
	return a, nil
}

// Close drains pending events and releases the database and log file.
func (a *app) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
