package harvest

import (
	"strings"
	"time"
)

// Status reports which partition of the contact store a contact belongs to.
type Status string

// Supported contact statuses.
const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

// Contact is a discovered address together with its provenance. Email is the
// natural key.
type Contact struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Source      string     `json:"source"`
	Keyword     string     `json:"keyword"`
	CollectedAt time.Time  `json:"collectedAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
}

// Status derives the partition from SentAt.
func (c Contact) Status() Status {
	if c.SentAt != nil {
		return StatusSent
	}
	return StatusPending
}

// Key returns the normalized email used for equality.
func (c Contact) Key() string {
	return NormalizeEmail(c.Email)
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Attachment references a file sent alongside a message.
type Attachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Message is the content of a bulk dispatch. Bodies are passed through as-is.
type Message struct {
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// DispatchResult summarizes a dispatch run.
type DispatchResult struct {
	Sent       int      `json:"sent"`
	Failed     int      `json:"failed"`
	SentEmails []string `json:"sentEmails"`
	Canceled   bool     `json:"canceled,omitempty"`
}

// Verdict is the deliverability outcome for an address.
type Verdict string

// Verdict values.
const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
)

// Valid reports whether v is VerdictValid.
func (v Verdict) Valid() bool { return v == VerdictValid }

// SiteResult pairs a visited URL with the addresses extracted from it.
type SiteResult struct {
	URL    string
	Emails []string
	Err    error
}
