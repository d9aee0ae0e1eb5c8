// Package resend sends mail through the Resend HTTP API.
package resend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// emailSender is the part of the Resend client used here.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Sender implements harvest.Mailer over Resend.
type Sender struct {
	emails emailSender
	from   string
	logger *zap.Logger
}

// New creates a Sender for apiKey with a default from address.
func New(apiKey, from string, logger *zap.Logger) (*Sender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: resend.api_key is required", harvest.ErrInitialization)
	}
	client := resend.NewClient(apiKey)
	return newSender(client.Emails, from, logger)
}

func newSender(emails emailSender, from string, logger *zap.Logger) (*Sender, error) {
	if from == "" {
		return nil, fmt.Errorf("%w: mailer.from is required", harvest.ErrInitialization)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{emails: emails, from: from, logger: logger.Named("resend")}, nil
}

// Send delivers msg to one recipient.
func (s *Sender) Send(ctx context.Context, to string, msg harvest.Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		content, err := os.ReadFile(a.Path)
		if err != nil {
			return fmt.Errorf("read attachment %s: %w", a.Path, err)
		}
		name := a.Filename
		if name == "" {
			name = filepath.Base(a.Path)
		}
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Content:  content,
			Filename: name,
		})
	}

	sent, err := s.emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	s.logger.Debug("resend_sent", zap.String("message_id", sent.Id), zap.String("to", to))
	return nil
}
