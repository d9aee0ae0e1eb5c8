package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/storage"
)

// ContactStore is a process-local harvest.Store for tests and dry runs.
type ContactStore struct {
	clock harvest.Clock

	mu     sync.Mutex
	ledger *storage.Ledger
}

// NewContactStore returns an empty store.
func NewContactStore(clock harvest.Clock) *ContactStore {
	return &ContactStore{clock: clock, ledger: storage.NewLedger(nil)}
}

// Save adds contacts whose email is not yet stored.
func (s *ContactStore) Save(_ context.Context, contacts []harvest.Contact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Save(contacts), nil
}

// Move transitions pending contacts to sent.
func (s *ContactStore) Move(_ context.Context, emails []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Move(emails, s.clock.Now().UTC()), nil
}

// LoadPending returns the pending partition.
func (s *ContactStore) LoadPending(context.Context) ([]harvest.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Pending(), nil
}

// LoadSent returns the sent partition.
func (s *ContactStore) LoadSent(context.Context) ([]harvest.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Sent(), nil
}

// ClearPending drops the pending partition.
func (s *ContactStore) ClearPending(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.ClearPending()
	return nil
}

// Close implements harvest.Store.
func (s *ContactStore) Close() error { return nil }
