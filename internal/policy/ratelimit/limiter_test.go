package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 10, PerHostBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com/a"))

	// 10 RPS with burst 1 leaves the bucket empty for ~100ms.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://TEST.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.Equal(t, 1, l.Hosts())
}

func TestLimiterDifferentHostsIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 1, PerHostBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.com/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, 2, l.Hosts())
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 0.1, PerHostBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.com"))
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://fast.com"))
	}
	var nilLimiter *Limiter
	require.NoError(t, nilLimiter.Wait(context.Background(), "https://fast.com"))
}

func TestHost(t *testing.T) {
	t.Parallel()

	require.Equal(t, "acme.com", Host("https://ACME.com:8443/contato"))
	require.Equal(t, "unknown", Host("::not a url"))
	require.Equal(t, "unknown", Host("/relative"))
}
