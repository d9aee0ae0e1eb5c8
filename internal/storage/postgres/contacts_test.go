package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-harvester/internal/clock/fake"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

func newStore(t *testing.T) (*ContactStore, pgxmock.PgxPoolIface, *fake.Clock) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	clk := fake.New(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	store, err := NewWithPool(mock, "contacts", clk)
	require.NoError(t, err)
	return store, mock, clk
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "contacts; drop table x", fake.New(time.Now()))
	require.Error(t, err)

	_, err = NewWithPool(nil, "contacts", fake.New(time.Now()))
	require.Error(t, err)
}

func TestSaveInsertsInTransaction(t *testing.T) {
	t.Parallel()

	store, mock, clk := newStore(t)
	collected := clk.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("sales@acme.com", "Acme", "https://acme.com", "acme", collected).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("info@globex.com", "Globex", "https://globex.com", "acme", collected).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	added, err := store.Save(context.Background(), []harvest.Contact{
		{Name: "Acme", Email: " Sales@Acme.com ", Source: "https://acme.com", Keyword: "acme", CollectedAt: collected},
		{Name: "Globex", Email: "info@globex.com", Source: "https://globex.com", Keyword: "acme", CollectedAt: collected},
	})
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock, clk := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("sales@acme.com", "Acme", "", "", clk.Now()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), []harvest.Contact{
		{Name: "Acme", Email: "sales@acme.com", CollectedAt: clk.Now()},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, harvest.ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStampsSentAt(t *testing.T) {
	t.Parallel()

	store, mock, clk := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contacts SET sent_at").
		WithArgs(clk.Now(), []string{"sales@acme.com", "info@globex.com"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	moved, err := store.Move(context.Background(), []string{"SALES@acme.com", "info@globex.com", " "})
	require.NoError(t, err)
	require.Equal(t, 2, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveWithNothingToDoSkipsDatabase(t *testing.T) {
	t.Parallel()

	store, mock, _ := newStore(t)

	moved, err := store.Move(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPendingScansRows(t *testing.T) {
	t.Parallel()

	store, mock, clk := newStore(t)
	collected := clk.Now()

	rows := pgxmock.NewRows([]string{"name", "email", "source", "keyword", "collected_at", "sent_at"}).
		AddRow("Acme", "sales@acme.com", "https://acme.com", "acme", collected, (*time.Time)(nil))
	mock.ExpectQuery("SELECT name, email, source, keyword, collected_at, sent_at").WillReturnRows(rows)

	pending, err := store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "sales@acme.com", pending[0].Email)
	require.Equal(t, harvest.StatusPending, pending[0].Status())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSentWrapsQueryError(t *testing.T) {
	t.Parallel()

	store, mock, _ := newStore(t)
	mock.ExpectQuery("SELECT name, email").WillReturnError(errors.New("connection reset"))

	_, err := store.LoadSent(context.Background())
	require.ErrorIs(t, err, harvest.ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearPendingAndSchema(t *testing.T) {
	t.Parallel()

	store, mock, _ := newStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS contacts").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("DELETE FROM contacts WHERE sent_at IS NULL").WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.ClearPending(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
