package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/storage"
)

const documentVersion = 1

// document is the on-disk shape. Entries with sentAt belong to the sent
// partition.
type document struct {
	Version   int               `json:"version"`
	Companies []harvest.Contact `json:"companies"`
}

// Store is a harvest.Store backed by one JSON file.
type Store struct {
	path   string
	clock  harvest.Clock
	logger *zap.Logger

	mu sync.Mutex
}

// New returns a store for path. The file is created on first write.
func New(path string, clock harvest.Clock, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("contact log path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: filepath.Clean(path), clock: clock, logger: logger}, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Save adds contacts whose email is not yet stored.
func (s *Store) Save(ctx context.Context, contacts []harvest.Contact) (int, error) {
	added := 0
	err := s.update(ctx, func(l *storage.Ledger) bool {
		added = l.Save(contacts)
		return added > 0
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("contacts saved", zap.Int("added", added), zap.Int("offered", len(contacts)))
	return added, nil
}

// Move transitions pending contacts to sent.
func (s *Store) Move(ctx context.Context, emails []string) (int, error) {
	moved := 0
	err := s.update(ctx, func(l *storage.Ledger) bool {
		moved = l.Move(emails, s.clock.Now().UTC())
		return moved > 0
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// ClearPending drops the pending partition.
func (s *Store) ClearPending(ctx context.Context) error {
	return s.update(ctx, func(l *storage.Ledger) bool {
		return l.ClearPending() > 0
	})
}

// LoadPending returns the pending partition.
func (s *Store) LoadPending(ctx context.Context) ([]harvest.Contact, error) {
	l, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return l.Pending(), nil
}

// LoadSent returns the sent partition.
func (s *Store) LoadSent(ctx context.Context) ([]harvest.Contact, error) {
	l, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return l.Sent(), nil
}

// Close implements harvest.Store; the file store holds no open handles.
func (s *Store) Close() error { return nil }

func (s *Store) snapshot(ctx context.Context) (*storage.Ledger, error) {
	var l *storage.Ledger
	err := s.locked(ctx, func() error {
		var err error
		l, err = s.read()
		return err
	})
	return l, err
}

func (s *Store) update(ctx context.Context, mutate func(*storage.Ledger) bool) error {
	return s.locked(ctx, func() error {
		l, err := s.read()
		if err != nil {
			return err
		}
		if !mutate(l) {
			return nil
		}
		return s.write(l)
	})
}

func (s *Store) locked(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := withLockFile(ctx, s.path+".lock", fn); err != nil {
		if errors.Is(err, harvest.ErrStorage) {
			return err
		}
		return fmt.Errorf("%w: lock %s: %w", harvest.ErrStorage, s.path, err)
	}
	return nil
}

func (s *Store) read() (*storage.Ledger, error) {
	doc, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	return storage.NewLedger(doc.Companies), nil
}

func (s *Store) write(l *storage.Ledger) error {
	data, err := json.MarshalIndent(document{Version: documentVersion, Companies: l.All()}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", harvest.ErrStorage, s.path, err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %w", harvest.ErrStorage, err)
	}
	return nil
}

func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return document{Version: documentVersion}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("%w: read %s: %w", harvest.ErrStorage, path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return document{Version: documentVersion}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: decode %s: %w", harvest.ErrStorage, path, err)
	}
	return doc, nil
}
