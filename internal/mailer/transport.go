package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/eugenenazirov/release-desk/internal/config"
)

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// SMTPTransport dials the configured relay for every message.
type SMTPTransport struct {
	settings config.EmailConfig
}

// NewSMTPTransport creates a transport for the given relay settings.
func NewSMTPTransport(settings config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{settings: settings}
}

// Send connects, upgrades with STARTTLS when configured, authenticates when
// both username and password are present and delivers msg.
func (t *SMTPTransport) Send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(t.settings.Host, t.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", t.settings.Host, t.settings.Port, err)
	}
	return nil
}

func (t *SMTPTransport) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(t.settings.Port),
		mail.WithTimeout(t.settings.Timeout),
	}
	if t.settings.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if t.settings.Username != "" && t.settings.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.settings.Username),
			mail.WithPassword(t.settings.Password),
		)
	}
	return opts
}
