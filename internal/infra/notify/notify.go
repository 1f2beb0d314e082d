// Package notify reports run outcomes by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by Nop. Callers treat it as a soft failure.
var ErrNotConfigured = errors.New("email notification not configured")

// Notifier delivers a short report.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Config holds SMTP settings. It is read from the environment only.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	SSL      bool
	Timeout  time.Duration
}

// Configured reports whether enough settings are present to send mail.
func (c Config) Configured() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// ConfigFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD,
// MAIL_FROM, MAIL_TO (comma separated) and SMTP_SSL.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:     465,
		Username: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     strings.TrimSpace(os.Getenv("MAIL_FROM")),
		SSL:      true,
		Timeout:  15 * time.Second,
	}

	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid SMTP_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("SMTP_SSL"); v != "" {
		ssl, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SMTP_SSL %q", v)
		}
		cfg.SSL = ssl
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	for _, addr := range strings.Split(os.Getenv("MAIL_TO"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.To = append(cfg.To, addr)
		}
	}

	return cfg, nil
}

// New returns a Mailer when cfg is complete, otherwise a Nop.
func New(cfg Config, log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Configured() {
		return Nop{log: log}
	}
	return &Mailer{cfg: cfg, log: log}
}

// Nop skips delivery.
type Nop struct {
	log *slog.Logger
}

func (n Nop) Notify(_ context.Context, subject, _ string) error {
	if n.log != nil {
		n.log.Warn("Notification skipped, email not configured", "subject", subject)
	}
	return ErrNotConfigured
}

// Mailer sends plain-text mail over SMTP.
type Mailer struct {
	cfg Config
	log *slog.Logger
}

func (m *Mailer) Notify(ctx context.Context, subject, body string) error {
	msg, err := m.message(subject, body)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.log.Info("Notification sent", "to", strings.Join(m.cfg.To, ","), "subject", subject)
	return nil
}

func (m *Mailer) message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
