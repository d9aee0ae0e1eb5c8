package validator

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-harvester/internal/clock/fake"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

type stubResolver struct {
	mu      sync.Mutex
	calls   map[string]int
	records map[string][]*net.MX
	errs    map[string]error
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		calls:   make(map[string]int),
		records: make(map[string][]*net.MX),
		errs:    make(map[string]error),
	}
}

func (r *stubResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[domain]++
	if err := r.errs[domain]; err != nil {
		return nil, err
	}
	return r.records[domain], nil
}

func (r *stubResolver) Calls(domain string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[domain]
}

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) error {
	p.mu.Lock()
	p.delays = append(p.delays, d)
	p.mu.Unlock()
	return nil
}

func newTestValidator(res harvest.Resolver, clk harvest.Clock) (*Validator, *recordingPauser) {
	v := New(res, clk, Config{})
	p := &recordingPauser{}
	v.pause = p
	return v, p
}

func mx(host string) []*net.MX {
	return []*net.MX{{Host: host, Pref: 10}}
}

func TestCheckRejectsMalformedWithoutDNS(t *testing.T) {
	t.Parallel()

	res := newStubResolver()
	v, _ := newTestValidator(res, fake.New(time.Now()))
	for _, email := range []string{"plain", "a b@acme.com", "x@acme", "@acme.com"} {
		verdict, reason := v.Check(context.Background(), email)
		require.Equal(t, harvest.VerdictInvalid, verdict, email)
		require.Equal(t, ReasonFormat, reason, email)
	}
	require.Zero(t, res.Calls("acme.com"))
	require.Zero(t, res.Calls("acme"))
}

func TestCheckValidAndMissingMX(t *testing.T) {
	t.Parallel()

	res := newStubResolver()
	res.records["acme.com"] = mx("mx.acme.com.")
	res.records["empty.com"] = nil
	v, _ := newTestValidator(res, fake.New(time.Now()))

	require.Equal(t, harvest.VerdictValid, v.Validate(context.Background(), "sales@acme.com"))

	verdict, reason := v.Check(context.Background(), "info@empty.com")
	require.Equal(t, harvest.VerdictInvalid, verdict)
	require.Equal(t, ReasonNoMX, reason)
}

func TestCacheReuseWithinTTL(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := fake.New(start)
	res := newStubResolver()
	res.records["acme.com"] = mx("mx.acme.com.")
	v, _ := newTestValidator(res, clk)

	require.True(t, v.Validate(context.Background(), "sales@acme.com").Valid())
	clk.Advance(DefaultCacheTTL - time.Second)
	require.True(t, v.Validate(context.Background(), "ceo@ACME.com").Valid())
	require.Equal(t, 1, res.Calls("acme.com"))

	clk.Advance(2 * time.Second)
	require.True(t, v.Validate(context.Background(), "sales@acme.com").Valid())
	require.Equal(t, 2, res.Calls("acme.com"))
}

func TestCachedInvalidKeepsReason(t *testing.T) {
	t.Parallel()

	res := newStubResolver()
	res.errs["gone.com"] = &net.DNSError{Err: "no such host", Name: "gone.com", IsNotFound: true}
	v, p := newTestValidator(res, fake.New(time.Now()))

	_, first := v.Check(context.Background(), "a@gone.com")
	_, second := v.Check(context.Background(), "b@gone.com")
	require.Equal(t, ReasonNoMX, first)
	require.Equal(t, ReasonNoMX, second)
	require.Equal(t, 1, res.Calls("gone.com"))
	require.Empty(t, p.delays)
}

func TestRetriesWithIncreasingBackoff(t *testing.T) {
	t.Parallel()

	clk := fake.New(time.Now())
	res := newStubResolver()
	res.errs["flaky.com"] = &net.DNSError{Err: "i/o timeout", Name: "flaky.com", IsTimeout: true}
	v, p := newTestValidator(res, clk)

	verdict, reason := v.Check(context.Background(), "sales@flaky.com")
	require.Equal(t, harvest.VerdictInvalid, verdict)
	require.Equal(t, ReasonDNSFailed, reason)
	require.Equal(t, 3, res.Calls("flaky.com"))
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, p.delays)

	// The exhausted verdict is cached for the domain.
	v.Validate(context.Background(), "other@flaky.com")
	require.Equal(t, 3, res.Calls("flaky.com"))
}

func TestRetryRecoversOnLaterAttempt(t *testing.T) {
	t.Parallel()

	res := &sequenceResolver{results: []error{errors.New("servfail"), nil}}
	v, p := newTestValidator(res, fake.New(time.Now()))
	require.True(t, v.Validate(context.Background(), "sales@acme.com").Valid())
	require.Equal(t, 2, res.calls)
	require.Len(t, p.delays, 1)
}

func TestCanceledLookupIsNotCached(t *testing.T) {
	t.Parallel()

	res := newStubResolver()
	res.errs["acme.com"] = context.Canceled
	v, _ := newTestValidator(res, fake.New(time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, harvest.VerdictInvalid, v.Validate(ctx, "sales@acme.com"))
	require.Zero(t, v.cache.Len())
}

func TestBackoffPolicy(t *testing.T) {
	t.Parallel()

	p := NewBackoffPolicy(2, 500*time.Millisecond, 0)
	require.Equal(t, 500*time.Millisecond, p.Backoff(0))
	require.Equal(t, time.Second, p.Backoff(1))
	require.Equal(t, 2*time.Second, p.Backoff(2))
	require.True(t, p.ShouldRetry(errors.New("boom"), 0))
	require.True(t, p.ShouldRetry(errors.New("boom"), 1))
	require.False(t, p.ShouldRetry(errors.New("boom"), 2))
	require.False(t, p.ShouldRetry(nil, 0))
	require.False(t, p.ShouldRetry(context.Canceled, 0))

	capped := NewBackoffPolicy(5, time.Second, 3*time.Second)
	require.Equal(t, 3*time.Second, capped.Backoff(4))
}

type sequenceResolver struct {
	calls   int
	results []error
}

func (r *sequenceResolver) LookupMX(context.Context, string) ([]*net.MX, error) {
	err := r.results[r.calls]
	r.calls++
	if err != nil {
		return nil, err
	}
	return mx("mx.example.net."), nil
}
