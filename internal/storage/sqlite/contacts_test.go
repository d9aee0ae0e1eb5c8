package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-harvester/internal/clock/fake"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

func openStore(t *testing.T) (*ContactStore, *fake.Clock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.db")
	clk := fake.New(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(context.Background(), path, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clk, path
}

func contact(email string, at time.Time) harvest.Contact {
	return harvest.Contact{
		Name:        harvest.CompanyName(email),
		Email:       email,
		Source:      "https://" + harvest.Domain(email),
		Keyword:     "acme",
		CollectedAt: at,
	}
}

func TestSaveDedupesAgainstBothPartitions(t *testing.T) {
	t.Parallel()

	store, clk, _ := openStore(t)
	ctx := context.Background()

	added, err := store.Save(ctx, []harvest.Contact{
		contact("sales@acme.com", clk.Now()),
		contact("info@globex.com", clk.Now()),
		contact("SALES@acme.com", clk.Now()),
	})
	require.NoError(t, err)
	require.Equal(t, 2, added)

	moved, err := store.Move(ctx, []string{"info@globex.com"})
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	added, err = store.Save(ctx, []harvest.Contact{contact("info@globex.com", clk.Now())})
	require.NoError(t, err)
	require.Zero(t, added)

	pending, err := store.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "sales@acme.com", pending[0].Email)
	require.True(t, pending[0].CollectedAt.Equal(clk.Now()))

	sent, err := store.LoadSent(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].SentAt)
	require.True(t, sent[0].SentAt.Equal(clk.Now()))
}

func TestMoveIgnoresUnknownAndSent(t *testing.T) {
	t.Parallel()

	store, clk, _ := openStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, []harvest.Contact{contact("sales@acme.com", clk.Now())})
	require.NoError(t, err)

	moved, err := store.Move(ctx, []string{"sales@acme.com", "ghost@nowhere.com"})
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	clk.Advance(time.Hour)
	moved, err = store.Move(ctx, []string{"sales@acme.com"})
	require.NoError(t, err)
	require.Zero(t, moved)

	sent, err := store.LoadSent(ctx)
	require.NoError(t, err)
	require.True(t, sent[0].SentAt.Equal(clk.Now().Add(-time.Hour)))
}

func TestClearPendingKeepsSent(t *testing.T) {
	t.Parallel()

	store, clk, _ := openStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, []harvest.Contact{
		contact("sales@acme.com", clk.Now()),
		contact("info@globex.com", clk.Now()),
	})
	require.NoError(t, err)
	_, err = store.Move(ctx, []string{"sales@acme.com"})
	require.NoError(t, err)

	require.NoError(t, store.ClearPending(ctx))

	pending, err := store.LoadPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
	sent, err := store.LoadSent(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 1)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	store, clk, path := openStore(t)
	ctx := context.Background()
	_, err := store.Save(ctx, []harvest.Contact{contact("sales@acme.com", clk.Now())})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path, clk)
	require.NoError(t, err)
	defer reopened.Close()

	pending, err := reopened.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), " ", fake.New(time.Now()))
	require.ErrorIs(t, err, harvest.ErrInitialization)
}
