package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nazarhussain/contact-gate/internal/contact"
	"github.com/nazarhussain/contact-gate/internal/gate"
)

// RejectedError is returned by send when the gate or relay turned the
// submission down. The user-facing message has already been printed.
type RejectedError struct {
	Decision gate.Decision
}

func (e *RejectedError) Error() string {
	return "submission rejected: " + e.Decision.Reason
}

func newSendCmd(v *viper.Viper) *cobra.Command {
	var form contact.Form

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a contact message",
		Example: `  contact send --name Alice --email alice@example.com \
    --subject "Project idea" --message "Hello there"
  echo "Hello there" | contact send --name Alice --email alice@example.com --subject Hi --message -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Message == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read message from stdin: %w", err)
				}
				form.Message = strings.TrimRight(string(b), "\n")
			}

			log := newLogger(cmd, v)
			g, kv, err := openGate(cmd.Context(), v, log)
			if err != nil {
				return err
			}
			defer kv.Close() // nolint:errcheck // best-effort cleanup

			d, err := g.Attempt(cmd.Context(), &form, time.Now())
			if err != nil {
				if !d.Succeeded() {
					return err
				}
				log.Warn("message sent but not recorded", "err", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), d.Message)
			if d.Outcome == gate.Rejected {
				if len(d.Missing) > 0 {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "missing: %s\n", strings.Join(d.Missing, ", "))
				}
				return &RejectedError{Decision: d}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.Name, "name", "", "your name")
	f.StringVar(&form.Email, "email", "", "your email address")
	f.StringVar(&form.Subject, "subject", "", "message subject")
	f.StringVar(&form.Message, "message", "", `message body ("-" reads stdin)`)
	f.StringVar(&form.Honeypot, "honeypot", "", "")
	_ = f.MarkHidden("honeypot")
	return cmd
}
