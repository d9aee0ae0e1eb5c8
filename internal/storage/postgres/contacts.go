// Package postgres provides the Postgres-backed contact store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for contacts.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// ContactStore keeps both partitions in one table; sent_at IS NULL marks a
// pending row.
type ContactStore struct {
	pool  pool
	table string
	clock harvest.Clock
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config, clock harvest.Clock) (*ContactStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: storage.dsn is required", harvest.ErrInitialization)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %w", harvest.ErrInitialization, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", harvest.ErrInitialization, err)
	}
	store, err := NewWithPool(p, cfg.Table, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string, clock harvest.Clock) (*ContactStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = "contacts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ContactStore{pool: p, table: table, clock: clock}, nil
}

// EnsureSchema creates the contacts table when it does not exist.
func (s *ContactStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	seq          BIGSERIAL,
	email        TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	source       TEXT NOT NULL,
	keyword      TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	sent_at      TIMESTAMPTZ
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: create table %s: %w", harvest.ErrStorage, s.table, err)
	}
	return nil
}

// Save inserts contacts whose email is not yet stored, in one transaction.
func (s *ContactStore) Save(ctx context.Context, contacts []harvest.Contact) (int, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (email, name, source, keyword, collected_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (email) DO NOTHING`, s.table)

	added := 0
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, c := range contacts {
			key := c.Key()
			if key == "" {
				continue
			}
			tag, err := tx.Exec(ctx, query, key, c.Name, c.Source, c.Keyword, c.CollectedAt.UTC())
			if err != nil {
				return fmt.Errorf("insert %s: %w", key, err)
			}
			added += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Move stamps sent_at on pending rows named by emails, in one transaction.
func (s *ContactStore) Move(ctx context.Context, emails []string) (int, error) {
	keys := make([]string, 0, len(emails))
	for _, e := range emails {
		if key := harvest.NormalizeEmail(e); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`UPDATE %s SET sent_at = $1 WHERE email = ANY($2) AND sent_at IS NULL`, s.table)

	moved := 0
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, s.clock.Now().UTC(), keys)
		if err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
		moved = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
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
	query := fmt.Sprintf(`DELETE FROM %s WHERE sent_at IS NULL`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: clear pending: %w", harvest.ErrStorage, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ContactStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *ContactStore) load(ctx context.Context, where string) ([]harvest.Contact, error) {
	query := fmt.Sprintf(`
SELECT name, email, source, keyword, collected_at, sent_at
FROM %s WHERE %s ORDER BY seq`, s.table, where)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query contacts: %w", harvest.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]harvest.Contact, 0)
	for rows.Next() {
		var c harvest.Contact
		if err := rows.Scan(&c.Name, &c.Email, &c.Source, &c.Keyword, &c.CollectedAt, &c.SentAt); err != nil {
			return nil, fmt.Errorf("%w: scan contact: %w", harvest.ErrStorage, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read contacts: %w", harvest.ErrStorage, err)
	}
	return out, nil
}

func (s *ContactStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", harvest.ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w (rollback: %v)", harvest.ErrStorage, err, rbErr)
		}
		return fmt.Errorf("%w: %w", harvest.ErrStorage, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", harvest.ErrStorage, err)
	}
	return nil
}
