package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nazarhussain/contact-gate/internal/config"
	"github.com/nazarhussain/contact-gate/internal/logging"
	"github.com/nazarhussain/contact-gate/internal/mailer"
	"github.com/nazarhussain/contact-gate/internal/metrics"
	"github.com/nazarhussain/contact-gate/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	sender := newSender(cfg, logger)

	h := relay.New(relay.Config{
		From:          cfg.FromAddr,
		To:            cfg.ToAddr,
		SubjectPrefix: cfg.SubjectPrefix,
		MaxBodyBytes:  cfg.MaxBodyBytes(),
		Location:      cfg.ReceiptLocation,
	}, sender, m)

	s := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: relay.NewRouter(h, relay.RouterConfig{
			Route:          cfg.Route,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger,
			Metrics:        m,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("contact relay listening",
			"addr", cfg.ListenAddr,
			"route", cfg.Route,
			"provider", sender.Name(),
		)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newSender(cfg *config.Config, logger *slog.Logger) mailer.Sender {
	switch cfg.Provider {
	case config.ProviderSMTP:
		return mailer.NewSMTP(cfg.SMTP)
	case config.ProviderLog:
		return mailer.NewLog(logger)
	default:
		return mailer.NewResend(cfg.ResendAPIKey, cfg.ResendBaseURL, cfg.ProviderTimeout)
	}
}
