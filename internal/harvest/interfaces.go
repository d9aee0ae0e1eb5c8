package harvest

import (
	"context"
	"net"
	"time"
)

// Searcher resolves a search query to candidate site URLs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Page is the fetched form of a site: its final URL, visible text, and the
// outbound links found on it.
type Page struct {
	URL   string
	Text  string
	Links []string
}

// Fetcher retrieves a page's visible text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Resolver looks up MX records for a domain.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// Mailer delivers a single message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Verifier is implemented by transports that can probe connectivity before a
// dispatch starts.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Store is the durable pending/sent contact log. Implementations keep the two
// partitions disjoint by email.
type Store interface {
	// Save appends contacts whose email is not already stored in either
	// partition and returns how many were added.
	Save(ctx context.Context, contacts []Contact) (int, error)
	// Move transitions the named pending contacts to sent, stamping SentAt.
	// Emails not currently pending are ignored.
	Move(ctx context.Context, emails []string) (int, error)
	LoadPending(ctx context.Context) ([]Contact, error)
	LoadSent(ctx context.Context) ([]Contact, error)
	// ClearPending drops every pending contact; sent history is kept.
	ClearPending(ctx context.Context) error
	Close() error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
