// Package sqlite provides a single-file SQL contact store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	email        TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	source       TEXT NOT NULL,
	keyword      TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	sent_at      TEXT
)`

// ContactStore keeps both partitions in one table; a NULL sent_at marks a
// pending row.
type ContactStore struct {
	db    *sqlx.DB
	clock harvest.Clock
}

type contactRow struct {
	Name        string         `db:"name"`
	Email       string         `db:"email"`
	Source      string         `db:"source"`
	Keyword     string         `db:"keyword"`
	CollectedAt string         `db:"collected_at"`
	SentAt      sql.NullString `db:"sent_at"`
}

// Open opens (creating when needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, clock harvest.Clock) (*ContactStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: storage.sqlite_path is required", harvest.ErrInitialization)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", harvest.ErrInitialization, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", harvest.ErrInitialization, err)
	}
	return NewWithDB(db, clock), nil
}

// NewWithDB wraps an already opened database whose schema is in place.
func NewWithDB(db *sqlx.DB, clock harvest.Clock) *ContactStore {
	return &ContactStore{db: db, clock: clock}
}

// Save inserts contacts whose email is not yet stored.
func (s *ContactStore) Save(ctx context.Context, contacts []harvest.Contact) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", harvest.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO contacts (email, name, source, keyword, collected_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare insert: %w", harvest.ErrStorage, err)
	}
	defer stmt.Close()

	added := 0
	for _, c := range contacts {
		key := c.Key()
		if key == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, key, c.Name, c.Source, c.Keyword, c.CollectedAt.UTC().Format(timeLayout))
		if err != nil {
			return 0, fmt.Errorf("%w: insert %s: %w", harvest.ErrStorage, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%w: rows affected: %w", harvest.ErrStorage, err)
		}
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", harvest.ErrStorage, err)
	}
	return added, nil
}

// Move stamps sent_at on the named pending rows in one transaction.
func (s *ContactStore) Move(ctx context.Context, emails []string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", harvest.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PreparexContext(ctx,
		`UPDATE contacts SET sent_at = ? WHERE email = ? AND sent_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare update: %w", harvest.ErrStorage, err)
	}
	defer stmt.Close()

	at := s.clock.Now().UTC().Format(timeLayout)
	moved := 0
	for _, e := range emails {
		key := harvest.NormalizeEmail(e)
		if key == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, at, key)
		if err != nil {
			return 0, fmt.Errorf("%w: mark %s sent: %w", harvest.ErrStorage, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%w: rows affected: %w", harvest.ErrStorage, err)
		}
		moved += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", harvest.ErrStorage, err)
	}
	return moved, nil
}

// LoadPending returns unsent contacts in insertion order.
func (s *ContactStore) LoadPending(ctx context.Context) ([]harvest.Contact, error) {
	return s.load(ctx, "sent_at IS NULL")
}

// LoadSent returns sent contacts in insertion order.
func (s *ContactStore) LoadSent(ctx context.Context) ([]harvest.Contact, error) {
	return s.load(ctx, "sent_at IS NOT NULL")
}

// ClearPending deletes every pending row.
func (s *ContactStore) ClearPending(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE sent_at IS NULL`); err != nil {
		return fmt.Errorf("%w: clear pending: %w", harvest.ErrStorage, err)
	}
	return nil
}

// Close closes the database.
func (s *ContactStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func (s *ContactStore) load(ctx context.Context, where string) ([]harvest.Contact, error) {
	var rows []contactRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT name, email, source, keyword, collected_at, sent_at
		 FROM contacts WHERE `+where+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: query contacts: %w", harvest.ErrStorage, err)
	}

	out := make([]harvest.Contact, 0, len(rows))
	for _, r := range rows {
		c := harvest.Contact{Name: r.Name, Email: r.Email, Source: r.Source, Keyword: r.Keyword}
		if c.CollectedAt, err = time.Parse(timeLayout, r.CollectedAt); err != nil {
			return nil, fmt.Errorf("%w: parse collected_at for %s: %w", harvest.ErrStorage, c.Email, err)
		}
		if r.SentAt.Valid {
			at, err := time.Parse(timeLayout, r.SentAt.String)
			if err != nil {
				return nil, fmt.Errorf("%w: parse sent_at for %s: %w", harvest.ErrStorage, c.Email, err)
			}
			c.SentAt = &at
		}
		out = append(out, c)
	}
	return out, nil
}
