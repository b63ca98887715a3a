// Package mailer delivers transactional email (verification and password reset links).
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"student_portal_backend/internal/config"
)

// Message is a plain text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when SMTP_HOST is set, otherwise a mailer that
// only logs, which is enough for local development.
func New(cfg *config.Config, logger *zap.Logger) (Mailer, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		logger.Warn("SMTP_HOST not set, outgoing mail will only be logged")
		return NewLogMailer(logger), nil
	}
	return NewSMTPMailer(cfg, logger)
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
	logger *zap.Logger
}

func NewSMTPMailer(cfg *config.Config, logger *zap.Logger) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(30 * time.Second),
		mail.WithTLSConfig(&tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}),
	}
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	if cfg.SMTPTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		logger.Error("Failed to create mail client", zap.Error(err), zap.String("host", cfg.SMTPHost))
		return nil, fmt.Errorf("creating mail client: %w", err)
	}
	logger.Info("SMTP mailer configured", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
	return &SMTPMailer{client: client, from: cfg.SMTPFrom, logger: logger.Named("Mailer")}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("email requires a recipient")
	}
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return fmt.Errorf("setting from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		m.logger.Error("Failed to send email", zap.Error(err), zap.String("subject", msg.Subject))
		return fmt.Errorf("sending email: %w", err)
	}
	m.logger.Info("Email sent", zap.String("subject", msg.Subject))
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("Mailer")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("email requires a recipient")
	}
	m.logger.Info("Outgoing email (not sent, SMTP disabled)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
