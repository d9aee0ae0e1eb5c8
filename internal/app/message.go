package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/mailer"
)

const fallbackHTML = "<h1>Olá!</h1><p>Gostaria de apresentar meu trabalho.</p>"

// ComposeMessage fills the gaps of a send request from configuration: the
// default subject, the HTML template (or a built-in body) when neither body
// is given, and the configured attachment when the file exists.
func (a *App) ComposeMessage(subject, html, text string, attachments ...string) (harvest.Message, error) {
	msg := harvest.Message{Subject: strings.TrimSpace(subject), HTML: html, Text: text}
	if msg.Subject == "" {
		msg.Subject = a.cfg.Dispatch.Subject
	}
	if strings.TrimSpace(msg.HTML) == "" && strings.TrimSpace(msg.Text) == "" {
		body, err := a.templateBody()
		if err != nil {
			return harvest.Message{}, err
		}
		msg.HTML = body
	}

	if a.cfg.Dispatch.AttachmentPath != "" {
		attachments = append([]string{a.cfg.Dispatch.AttachmentPath}, attachments...)
	}
	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				a.logger.Warn("attachment not found, sending without it", zap.String("path", path))
				continue
			}
			return harvest.Message{}, fmt.Errorf("stat attachment %s: %w", path, err)
		}
		msg.Attachments = append(msg.Attachments, harvest.Attachment{Filename: filepath.Base(path), Path: path})
	}
	return msg, mailer.Validate(msg)
}

func (a *App) templateBody() (string, error) {
	path := a.cfg.Dispatch.TemplatePath
	if path == "" {
		return fallbackHTML, nil
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.logger.Debug("email template not found, using built-in body", zap.String("path", path))
		return fallbackHTML, nil
	case err != nil:
		return "", fmt.Errorf("read email template %s: %w", path, err)
	}
	return string(data), nil
}
