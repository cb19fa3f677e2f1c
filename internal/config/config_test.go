package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"LISTEN_ADDR", "CONTACT_ROUTE", "MAIL_PROVIDER", "RESEND_API_KEY", "RESEND_BASE_URL",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_SSL",
	"FROM_ADDR", "TO_ADDR", "SUBJECT_PREFIX", "ALLOWED_ORIGINS", "MAX_BODY_KB",
	"PROVIDER_TIMEOUT", "SHUTDOWN_TIMEOUT", "RECEIPT_TZ", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every config variable and runs the test from an empty
// directory so no .env file is picked up.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TO_ADDR", "owner@example.com")
	t.Setenv("RESEND_API_KEY", "re_123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, "/send-contact", cfg.Route)
	assert.Equal(t, ProviderResend, cfg.Provider)
	assert.Equal(t, "re_123", cfg.ResendAPIKey)
	assert.Equal(t, "https://api.resend.com", cfg.ResendBaseURL)
	assert.Equal(t, "Portfolio Contact <onboarding@resend.dev>", cfg.FromAddr)
	assert.Equal(t, "Portfolio Contact:", cfg.SubjectPrefix)
	assert.Equal(t, int64(64*1024), cfg.MaxBodyBytes())
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.Equal(t, time.UTC, cfg.ReceiptLocation)
}

func TestLoadMissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TO_ADDR")
	assert.Contains(t, err.Error(), "RESEND_API_KEY")
}

func TestLoadSMTP(t *testing.T) {
	clearEnv(t)
	t.Setenv("TO_ADDR", "owner@example.com")
	t.Setenv("MAIL_PROVIDER", "SMTP")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "user")
	t.Setenv("SMTP_PASS", "pass")
	t.Setenv("SMTP_SSL", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.com, https://b.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderSMTP, cfg.Provider)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.SSL)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, cfg.AllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TO_ADDR", "owner@example.com")
	t.Setenv("MAIL_PROVIDER", "carrier-pigeon")
	t.Setenv("MAX_BODY_KB", "0")
	t.Setenv("CONTACT_ROUTE", "send")
	t.Setenv("RECEIPT_TZ", "Mars/Olympus_Mons")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIL_PROVIDER")
	assert.Contains(t, err.Error(), "MAX_BODY_KB")
	assert.Contains(t, err.Error(), "CONTACT_ROUTE")
	assert.Contains(t, err.Error(), "RECEIPT_TZ")
}

func TestLoadReadsDotenv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("TO_ADDR=dotenv@example.com\nMAIL_PROVIDER=log\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("TO_ADDR")
		os.Unsetenv("MAIL_PROVIDER")
	})
	// godotenv does not override variables that are set, even to "".
	os.Unsetenv("TO_ADDR")
	os.Unsetenv("MAIL_PROVIDER")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv@example.com", cfg.ToAddr)
	assert.Equal(t, ProviderLog, cfg.Provider)
}

func TestLoadReceiptTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("TO_ADDR", "owner@example.com")
	t.Setenv("MAIL_PROVIDER", "log")
	t.Setenv("RECEIPT_TZ", "Local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Local, cfg.ReceiptLocation)
}
