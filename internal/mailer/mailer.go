// Package mailer sends plain-text mail over SMTP. All callers treat
// dispatch as best effort; delivery failures never fail a workflow.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Mailer sends mail from a fixed sender address.
type Mailer struct {
	client *mail.Client
	from   string
	// defaultTo receives operator notifications when the caller does not
	// name a recipient.
	defaultTo string
}

// Options configures the SMTP connection.
type Options struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	DefaultTo string
}

// New dials nothing; the connection is established per send.
func New(opts Options) (*Mailer, error) {
	if opts.Host == "" || opts.From == "" {
		return nil, errors.New("mailer: host and from address are required")
	}
	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}
	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	return &Mailer{client: client, from: opts.From, defaultTo: opts.DefaultTo}, nil
}

// Send delivers one plain-text message.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mailer: from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

// Notify sends to the configured operator address. It satisfies the
// notifier contract of the lead service.
func (m *Mailer) Notify(ctx context.Context, subject, body string) error {
	if m.defaultTo == "" {
		return errors.New("mailer: no default recipient configured")
	}
	return m.Send(ctx, m.defaultTo, subject, body)
}
