package mailer

import (
	"strings"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// NewMessage builds a message from a single body, treating it as HTML when
// it contains markup.
func NewMessage(subject, body string) harvest.Message {
	msg := harvest.Message{Subject: subject}
	if LooksLikeHTML(body) {
		msg.HTML = body
	} else {
		msg.Text = body
	}
	return msg
}

// LooksLikeHTML reports whether body contains a tag opener.
func LooksLikeHTML(body string) bool {
	return strings.Contains(body, "<")
}

// Validate checks that msg has a subject and at least one body.
func Validate(msg harvest.Message) error {
	if strings.TrimSpace(msg.Subject) == "" {
		return errSubject
	}
	if strings.TrimSpace(msg.Text) == "" && strings.TrimSpace(msg.HTML) == "" {
		return errBody
	}
	return nil
}
