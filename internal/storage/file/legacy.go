package file

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/storage"
)

// ImportLegacy merges the older two-file layout (a pending document and a
// sent document, both shaped {"companies":[...]}) into the log. Entries
// from the sent document without a sentAt are stamped with the store clock.
// Missing files are treated as empty.
func (s *Store) ImportLegacy(ctx context.Context, pendingPath, sentPath string) (int, error) {
	var incoming []harvest.Contact
	if pendingPath != "" {
		doc, err := readDocument(pendingPath)
		if err != nil {
			return 0, err
		}
		for _, c := range doc.Companies {
			c.SentAt = nil
			incoming = append(incoming, c)
		}
	}
	if sentPath != "" {
		doc, err := readDocument(sentPath)
		if err != nil {
			return 0, err
		}
		now := s.clock.Now().UTC()
		for _, c := range doc.Companies {
			if c.SentAt == nil {
				at := now
				c.SentAt = &at
			}
			incoming = append(incoming, c)
		}
	}
	if len(incoming) == 0 {
		return 0, nil
	}
	// Sent records go first so an address listed in both files counts once.
	ordered := make([]harvest.Contact, 0, len(incoming))
	for _, c := range incoming {
		if c.SentAt != nil {
			ordered = append(ordered, c)
		}
	}
	for _, c := range incoming {
		if c.SentAt == nil {
			ordered = append(ordered, c)
		}
	}

	changed := 0
	err := s.update(ctx, func(l *storage.Ledger) bool {
		changed = l.Import(ordered)
		return changed > 0
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("legacy contacts imported", zap.Int("changed", changed), zap.Int("offered", len(incoming)))
	return changed, nil
}
