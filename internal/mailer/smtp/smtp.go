// Package smtp sends mail through an authenticated SMTP relay.
package smtp

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

const defaultPort = 587

// Config holds relay settings.
type Config struct {
	Host string
	Port int
	// Secure selects implicit TLS; otherwise STARTTLS is used when offered.
	Secure   bool
	Username string
	Password string
	From     string
}

// Sender implements harvest.Mailer and harvest.Verifier over SMTP.
type Sender struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and returns a Sender. No connection is opened until the
// first Send or Verify.
func New(cfg Config, logger *zap.Logger) (*Sender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: smtp.host is required", harvest.ErrInitialization)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: mailer.from is required", harvest.ErrInitialization)
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{cfg: cfg, logger: logger.Named("smtp")}, nil
}

func (s *Sender) client() (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}
	if s.cfg.Secure {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

// Verify dials the relay and authenticates without sending.
func (s *Sender) Verify(ctx context.Context) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	if err := c.Close(); err != nil {
		s.logger.Debug("smtp_close_failed", zap.Error(err))
	}
	return nil
}

// Send delivers msg to one recipient over a fresh connection.
func (s *Sender) Send(ctx context.Context, to string, msg harvest.Message) error {
	m, err := buildMessage(s.cfg.From, to, msg)
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("smtp_sent", zap.String("to", to))
	return nil
}

func buildMessage(from, to string, msg harvest.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("smtp from %q: %w", from, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("smtp to %q: %w", to, err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}

	for _, a := range msg.Attachments {
		name := a.Filename
		if name == "" {
			name = filepath.Base(a.Path)
		}
		m.AttachFile(a.Path, mail.WithFileName(name))
	}
	return m, nil
}
