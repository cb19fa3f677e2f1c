// Package cli is the command tree of the contact client. It runs the
// submission gate locally and talks to the relay over HTTP.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nazarhussain/contact-gate/env"
	"github.com/nazarhussain/contact-gate/internal/gate"
	"github.com/nazarhussain/contact-gate/internal/logging"
	"github.com/nazarhussain/contact-gate/internal/store"
)

const (
	appName   = "contact-gate"
	envPrefix = "CONTACT"

	defaultRelayURL  = "http://localhost:3000/send-contact"
	defaultUserAgent = "contact-gate-cli"
)

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds a fresh command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "contact",
		Short: "Send contact messages through the rate-limited submission gate",
		Long: `contact sends a contact form submission to the relay, applying the same
honeypot, cooldown and hourly quota checks as the website form.

Flags may also be set through CONTACT_* environment variables or a config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+appName+"/config.yaml)")
	pf.String("relay-url", defaultRelayURL, "relay endpoint URL")
	pf.String("state", defaultStateDSN(), "gate state store: memory, file:<path>, sqlite:<path> or redis://...")
	pf.String("page", "", "page URL reported in the message meta")
	pf.String("user-agent", defaultUserAgent, "user agent reported in the message meta")
	pf.Duration("timeout", 30*time.Second, "relay request timeout")
	pf.BoolP("verbose", "v", false, "verbose output (sets log level to debug)")

	_ = v.BindPFlags(pf)

	root.AddCommand(
		newSendCmd(v),
		newStatusCmd(v),
		newResetCmd(v),
	)
	return root
}

// initConfig layers flags over CONTACT_* env over the optional config file.
func initConfig(v *viper.Viper, cfgFile string) error {
	if err := env.LoadDotenv(); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, appName))
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func defaultStateDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "file:" + filepath.Join(".", "."+appName+".json")
	}
	return "file:" + filepath.Join(dir, appName, "state.json")
}

func newLogger(cmd *cobra.Command, v *viper.Viper) *slog.Logger {
	level := "warn"
	if v.GetBool("verbose") {
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), level, "text")
}

// openGate opens the configured store and builds a gate on top of it. The
// caller closes the returned store.
func openGate(ctx context.Context, v *viper.Viper, log *slog.Logger) (*gate.Gate, store.KV, error) {
	kv, err := store.Open(ctx, v.GetString("state"))
	if err != nil {
		return nil, nil, err
	}
	relay := gate.NewHTTPRelay(v.GetString("relay-url"), &http.Client{Timeout: v.GetDuration("timeout")})
	g := gate.New(kv, relay,
		gate.WithLogger(log),
		gate.WithClient(v.GetString("user-agent"), v.GetString("page")),
	)
	return g, kv, nil
}
