// Package mail delivers transactional e-mail such as one-time passwords.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gomail "github.com/wneessen/go-mail"
)

// Message is a plain-text e-mail.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// Timeout bounds the dial and every SMTP command.
	Timeout time.Duration
}

const defaultTimeout = 10 * time.Second

// SMTPMailer sends mail through a single SMTP relay. STARTTLS is used when
// the relay offers it and PLAIN auth when a user is configured.
type SMTPMailer struct {
	cfg     SMTPConfig
	deliver func(ctx context.Context, c *gomail.Client, m *gomail.Msg) error
}

// NewSMTPMailer returns a Mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SMTPMailer{cfg: cfg, deliver: dialAndSend}
}

// New picks the SMTP mailer when a host is configured and the log mailer otherwise.
func New(cfg SMTPConfig) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}

func dialAndSend(ctx context.Context, c *gomail.Client, m *gomail.Msg) error {
	return c.DialAndSendWithContext(ctx, m)
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail.Send: %w", err)
	}

	gm, err := m.compose(msg, time.Now())
	if err != nil {
		return fmt.Errorf("mail.Send: %w", err)
	}

	client, err := gomail.NewClient(m.cfg.Host, m.options()...)
	if err != nil {
		return fmt.Errorf("mail.Send: %w", err)
	}

	if err := m.deliver(ctx, client, gm); err != nil {
		return fmt.Errorf("mail.Send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) options() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.User),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func (m *SMTPMailer) compose(msg Message, now time.Time) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	gm.Subject(sanitizeHeader(msg.Subject))
	gm.SetDateWithValue(now)
	gm.SetBodyString(gomail.TypeTextPlain, msg.Text)
	return gm, nil
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// LogMailer writes messages to the log instead of sending them. Used in
// development when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("component", "mail").
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("mail not sent: smtp disabled")
	return nil
}
