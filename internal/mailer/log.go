package mailer

import (
	"context"
	"log/slog"

	"github.com/jordan-wright/email"
)

// Log only logs messages. Used in development when no provider is set up.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Name() string {
	return "log"
}

func (l *Log) Send(ctx context.Context, msg *email.Email) error {
	l.logger.InfoContext(ctx, "mail not sent (log provider)",
		"from", msg.From,
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject", msg.Subject,
		"bytes", len(msg.Text),
	)
	l.logger.DebugContext(ctx, "mail body", "text", string(msg.Text))
	return nil
}
