package validator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-harvester/internal/clock/fake"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

func TestCacheExpiresLazily(t *testing.T) {
	t.Parallel()

	clk := fake.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewCache(time.Minute, clk)
	c.Put("Acme.com", harvest.VerdictValid, "")

	entry, ok := c.Get("acme.com")
	require.True(t, ok)
	require.Equal(t, harvest.VerdictValid, entry.Verdict)

	clk.Advance(time.Minute)
	_, ok = c.Get("acme.com")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewCache(0, fake.New(time.Now()))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("acme.com", harvest.VerdictValid, "")
			_, _ = c.Get("acme.com")
		}()
	}
	wg.Wait()
	entry, ok := c.Get("acme.com")
	require.True(t, ok)
	require.Equal(t, harvest.VerdictValid, entry.Verdict)
}
