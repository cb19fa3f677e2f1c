// Package mailer delivers composed contact messages through an email
// provider.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jordan-wright/email"
)

// Sender delivers one message.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *email.Email) error
}

// ProviderError is a refusal reported by the provider itself. Message is
// short and safe to return to the caller.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// NewMessage builds a plaintext message. replyTo may be empty.
func NewMessage(from, to, replyTo, subject, text string) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	if replyTo != "" {
		e.ReplyTo = []string{replyTo}
	}
	e.Subject = subject
	e.Text = []byte(text)
	return e
}

const maxProviderMessage = 200

// shortMessage flattens and truncates provider error text.
func shortMessage(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxProviderMessage {
		s = s[:maxProviderMessage] + "..."
	}
	if s == "" {
		s = "unknown error"
	}
	return s
}
