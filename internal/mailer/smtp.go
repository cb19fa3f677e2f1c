package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"

	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	SSL  bool
}

// SMTP sends through an SMTP server. The email library has no context
// support, so ctx is only checked before dialing.
type SMTP struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) Name() string {
	return "smtp"
}

func (s *SMTP) Send(ctx context.Context, msg *email.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)

	var err error
	if s.cfg.SSL {
		err = msg.SendWithTLS(addr, auth, &tls.Config{ServerName: s.cfg.Host})
	} else {
		err = msg.Send(addr, auth)
	}
	if err != nil {
		// Only a reply from the server is a provider refusal. Dial, TLS and
		// other transport failures stay internal.
		var reply *textproto.Error
		if errors.As(err, &reply) {
			return &ProviderError{Provider: s.Name(), StatusCode: reply.Code, Message: shortMessage(reply.Msg)}
		}
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}
