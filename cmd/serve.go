package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/inquiry-dispatch/internal/api"
	"github.com/shaharia-lab/inquiry-dispatch/internal/build"
	"github.com/shaharia-lab/inquiry-dispatch/internal/config"
	"github.com/shaharia-lab/inquiry-dispatch/internal/scheduler"
	"github.com/shaharia-lab/inquiry-dispatch/internal/server"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inquiry HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port (overrides PORT env var)")
	return cmd
}

func runServe(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("inquiryd starting",
		slog.Int("port", cfg.Port),
		slog.String("env", cfg.Env),
		slog.String("data_dir", cfg.DataDir),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	if cfg.OperatorToken == "" {
		a.logger.Warn("OPERATOR_TOKEN not set; notification log endpoint disabled")
	}

	channels := a.inquirySvc.Channels()
	if !channels.HTTPAPI && !channels.SMTP {
		a.logger.Warn("no notification channel configured; inquiries will be rejected")
	}

	sched, err := scheduler.New(scheduler.Config{
		Store:     a.store,
		Retention: cfg.LogRetention,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			a.logger.Warn("stopping scheduler", "error", err)
		}
	}()

	limiter := api.NewRateLimiter(cfg.InquiryRatePerMinute, cfg.InquiryRateBurst)
	apiSrv := api.New(a.inquirySvc, limiter, a.logger, cfg.Env, api.WithOperatorToken(cfg.OperatorToken))
	srv := server.New(apiSrv, server.Options{
		Port:         cfg.Port,
		FrontendHost: cfg.FrontendHost,
		Gatherer:     a.registry,
		TrustProxy:   cfg.TrustProxy,
	}, a.logger)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
