// Package storage holds the contact-log model shared by the contact store
// backends (file, memory, postgres, sqlite) and the blob destinations used
// for exports (local, gcs, memory).
package storage

import (
	"time"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// Ledger is the in-memory form of the contact log: contacts in insertion
// order, each in exactly one partition according to SentAt. It is not safe
// for concurrent use; stores guard it.
type Ledger struct {
	entries []harvest.Contact
	index   map[string]int
}

// NewLedger builds a ledger from persisted entries. Later duplicates of an
// email are dropped, except that a sent copy wins over a pending one.
func NewLedger(contacts []harvest.Contact) *Ledger {
	l := &Ledger{index: make(map[string]int, len(contacts))}
	for _, c := range contacts {
		key := c.Key()
		if key == "" {
			continue
		}
		c.Email = key
		if i, ok := l.index[key]; ok {
			if l.entries[i].SentAt == nil && c.SentAt != nil {
				l.entries[i] = c
			}
			continue
		}
		l.index[key] = len(l.entries)
		l.entries = append(l.entries, c)
	}
	return l
}

// Save appends contacts whose email is not already present and returns how
// many were added.
func (l *Ledger) Save(contacts []harvest.Contact) int {
	added := 0
	for _, c := range contacts {
		key := c.Key()
		if key == "" {
			continue
		}
		if _, ok := l.index[key]; ok {
			continue
		}
		c.Email = key
		c.SentAt = nil
		l.index[key] = len(l.entries)
		l.entries = append(l.entries, c)
		added++
	}
	return added
}

// Import merges entries that already carry their partition, e.g. records
// from an older log. A sent entry promotes a pending one with the same
// email. It returns how many entries were added or promoted.
func (l *Ledger) Import(contacts []harvest.Contact) int {
	changed := 0
	for _, c := range contacts {
		key := c.Key()
		if key == "" {
			continue
		}
		c = clone(c)
		c.Email = key
		if i, ok := l.index[key]; ok {
			if l.entries[i].SentAt == nil && c.SentAt != nil {
				l.entries[i].SentAt = c.SentAt
				changed++
			}
			continue
		}
		l.index[key] = len(l.entries)
		l.entries = append(l.entries, c)
		changed++
	}
	return changed
}

// Move stamps SentAt on the named pending contacts and returns how many
// moved. Unknown or already-sent emails are ignored.
func (l *Ledger) Move(emails []string, at time.Time) int {
	moved := 0
	for _, email := range emails {
		i, ok := l.index[harvest.NormalizeEmail(email)]
		if !ok || l.entries[i].SentAt != nil {
			continue
		}
		sentAt := at
		l.entries[i].SentAt = &sentAt
		moved++
	}
	return moved
}

// ClearPending drops every pending contact and returns how many were removed.
func (l *Ledger) ClearPending() int {
	kept := l.entries[:0]
	removed := 0
	for _, c := range l.entries {
		if c.SentAt == nil {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	l.entries = kept
	l.index = make(map[string]int, len(kept))
	for i, c := range kept {
		l.index[c.Email] = i
	}
	return removed
}

// Pending returns a copy of the pending partition.
func (l *Ledger) Pending() []harvest.Contact {
	return l.filter(harvest.StatusPending)
}

// Sent returns a copy of the sent partition.
func (l *Ledger) Sent() []harvest.Contact {
	return l.filter(harvest.StatusSent)
}

// All returns a copy of every entry in log order.
func (l *Ledger) All() []harvest.Contact {
	out := make([]harvest.Contact, len(l.entries))
	for i, c := range l.entries {
		out[i] = clone(c)
	}
	return out
}

func (l *Ledger) filter(status harvest.Status) []harvest.Contact {
	out := make([]harvest.Contact, 0)
	for _, c := range l.entries {
		if c.Status() == status {
			out = append(out, clone(c))
		}
	}
	return out
}

func clone(c harvest.Contact) harvest.Contact {
	if c.SentAt != nil {
		at := *c.SentAt
		c.SentAt = &at
	}
	return c
}
