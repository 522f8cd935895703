package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/lireddit"
	"github.com/wneessen/go-mail"
)

const defaultTimeout = 15 * time.Second

// New returns the Mailer for cfg.Driver.
func New(cfg lireddit.MailConfig, logger *slog.Logger) (lireddit.Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "smtp":
		return NewSMTP(cfg)
	case "log", "":
		return NewLog(logger, cfg.From), nil
	default:
		return nil, fmt.Errorf("mailer: unknown driver %q", cfg.Driver)
	}
}

/* ---- smtp ---- */

// SMTP sends HTML mail through an SMTP relay.
type SMTP struct {
	client *mail.Client
	from   string
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "", "opportunistic":
		return mail.TLSOpportunistic, nil
	case "mandatory":
		return mail.TLSMandatory, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("mailer: unknown TLS policy %q", name)
	}
}

func NewSMTP(cfg lireddit.MailConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: smtp host is required")
	}
	policy, err := tlsPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(defaultTimeout),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: smtp client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

// SendMail implements lireddit.Mailer.
func (s *SMTP) SendMail(ctx context.Context, to, subject, html string) error {
	msg, err := buildMessage(s.from, to, subject, html)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mailer: from %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)
	return msg, nil
}

/* ---- log ---- */

// Log writes messages to a slog.Logger instead of delivering them.
type Log struct {
	logger *slog.Logger
	from   string
}

func NewLog(logger *slog.Logger, from string) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, from: from}
}

func (l *Log) SendMail(ctx context.Context, to, subject, html string) error {
	// Same address checks as the smtp driver.
	if _, err := buildMessage(l.from, to, subject, html); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "mail preview",
		slog.String("from", l.from),
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("html", html),
	)
	return nil
}

var (
	_ lireddit.Mailer = (*SMTP)(nil)
	_ lireddit.Mailer = (*Log)(nil)
)
