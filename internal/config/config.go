package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nazarhussain/contact-gate/env"
	"github.com/nazarhussain/contact-gate/internal/mailer"
)

/*
ENV-ONLY CONFIG (a .env file in the working directory is loaded first):
  LISTEN_ADDR       (default ":3000")
  CONTACT_ROUTE     (default "/send-contact")
  MAIL_PROVIDER     resend | smtp | log (default "resend")

  resend:
    RESEND_API_KEY (required), RESEND_BASE_URL
  smtp:
    SMTP_HOST, SMTP_USER, SMTP_PASS (required), SMTP_PORT (587), SMTP_SSL (false)

  FROM_ADDR         (default "Portfolio Contact <onboarding@resend.dev>")
  TO_ADDR           (required) site owner mailbox
  SUBJECT_PREFIX    (default "Portfolio Contact:")
  ALLOWED_ORIGINS   comma-separated, "*" allowed
  MAX_BODY_KB       (default 64)
  PROVIDER_TIMEOUT  (default 10s)
  SHUTDOWN_TIMEOUT  (default 15s)
  RECEIPT_TZ        IANA zone for the "Received at" line (default "UTC")
  LOG_LEVEL, LOG_FORMAT
*/

const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
	ProviderLog    = "log"
)

type Config struct {
	ListenAddr      string
	Route           string
	Provider        string
	ResendAPIKey    string
	ResendBaseURL   string
	SMTP            mailer.SMTPConfig
	FromAddr        string
	ToAddr          string
	SubjectPrefix   string
	AllowedOrigins  []string
	MaxBodyKB       int
	ProviderTimeout time.Duration
	ShutdownTimeout time.Duration
	ReceiptLocation *time.Location
	LogLevel        string
	LogFormat       string
}

// Load reads the relay configuration from the environment.
func Load() (*Config, error) {
	if err := env.LoadDotenv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:     env.Env("LISTEN_ADDR", ":3000"),
		Route:          env.Env("CONTACT_ROUTE", "/send-contact"),
		Provider:       strings.ToLower(env.Env("MAIL_PROVIDER", ProviderResend)),
		ResendBaseURL:  env.Env("RESEND_BASE_URL", mailer.DefaultResendBaseURL),
		FromAddr:       env.Env("FROM_ADDR", "Portfolio Contact <onboarding@resend.dev>"),
		SubjectPrefix:  env.Env("SUBJECT_PREFIX", "Portfolio Contact:"),
		AllowedOrigins: env.List("ALLOWED_ORIGINS"),
		LogLevel:       env.Env("LOG_LEVEL", "info"),
		LogFormat:      env.Env("LOG_FORMAT", "text"),
	}

	var errs []error
	var err error

	if cfg.ToAddr, err = env.Required("TO_ADDR"); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxBodyKB, err = env.Int("MAX_BODY_KB", 64); err != nil {
		errs = append(errs, err)
	} else if cfg.MaxBodyKB <= 0 {
		errs = append(errs, errors.New("env MAX_BODY_KB must be positive"))
	}
	if cfg.ProviderTimeout, err = env.Duration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShutdownTimeout, err = env.Duration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	tz := env.Env("RECEIPT_TZ", "UTC")
	if cfg.ReceiptLocation, err = time.LoadLocation(tz); err != nil {
		errs = append(errs, fmt.Errorf("env RECEIPT_TZ: %w", err))
	}
	if !strings.HasPrefix(cfg.Route, "/") {
		errs = append(errs, fmt.Errorf("env CONTACT_ROUTE must start with /, got %q", cfg.Route))
	}

	switch cfg.Provider {
	case ProviderResend:
		if cfg.ResendAPIKey, err = env.Required("RESEND_API_KEY"); err != nil {
			errs = append(errs, err)
		}
	case ProviderSMTP:
		errs = append(errs, loadSMTP(&cfg.SMTP)...)
	case ProviderLog:
	default:
		errs = append(errs, fmt.Errorf("env MAIL_PROVIDER must be resend, smtp or log, got %q", cfg.Provider))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadSMTP(s *mailer.SMTPConfig) []error {
	var errs []error
	var err error
	if s.Host, err = env.Required("SMTP_HOST"); err != nil {
		errs = append(errs, err)
	}
	if s.User, err = env.Required("SMTP_USER"); err != nil {
		errs = append(errs, err)
	}
	if s.Pass, err = env.Required("SMTP_PASS"); err != nil {
		errs = append(errs, err)
	}
	if s.Port, err = env.Int("SMTP_PORT", 587); err != nil {
		errs = append(errs, err)
	}
	if s.SSL, err = env.Bool("SMTP_SSL", false); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// MaxBodyBytes is the request body cap in bytes.
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.MaxBodyKB) * 1024
}
