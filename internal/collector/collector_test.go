package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-harvester/internal/clock/fake"
	"github.com/JakeFAU/contact-harvester/internal/emails"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	"github.com/JakeFAU/contact-harvester/internal/storage/memory"
	"github.com/JakeFAU/contact-harvester/internal/validator"
	"github.com/JakeFAU/contact-harvester/internal/visitor"
)

type fakePlanner struct {
	sites map[string][]string
	errs  map[string]error
}

func (p *fakePlanner) Plan(keyword, _ string) []string { return []string{keyword} }

func (p *fakePlanner) Resolve(_ context.Context, query string) ([]string, error) {
	if err := p.errs[query]; err != nil {
		return nil, err
	}
	return p.sites[query], nil
}

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (harvest.Page, error) {
	text, ok := f.pages[url]
	if !ok {
		return harvest.Page{}, fmt.Errorf("%w: %s", harvest.ErrFetch, url)
	}
	return harvest.Page{URL: url, Text: text}, nil
}

type fakeResolver struct {
	mu      sync.Mutex
	domains map[string]bool
	lookups int
}

func (r *fakeResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.domains[domain] {
		return []*net.MX{{Host: "mx." + domain, Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: domain, IsNotFound: true}
}

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []progress.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Kind, 0, len(r.events))
	for _, e := range r.events {
		if e.Kind != progress.KindStatus {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (r *recorder) ofKind(k progress.Kind) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	planner  *fakePlanner
	fetcher  *fakeFetcher
	resolver *fakeResolver
	store    *memory.ContactStore
	clock    *fake.Clock
}

func newFixture() *fixture {
	clk := fake.New(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{
		planner:  &fakePlanner{sites: map[string][]string{}, errs: map[string]error{}},
		fetcher:  &fakeFetcher{pages: map[string]string{}},
		resolver: &fakeResolver{domains: map[string]bool{}},
		store:    memory.NewContactStore(clk),
		clock:    clk,
	}
}

func (f *fixture) orchestrator(t *testing.T, cfg Config, pacer Pacer) *Orchestrator {
	t.Helper()
	o, err := New(Deps{
		Planner:   f.planner,
		Visitor:   visitor.New(f.fetcher, visitor.Config{MaxConcurrency: 2}),
		Validator: validator.New(f.resolver, f.clock, validator.Config{Retries: -1}),
		Filter:    emails.NewFilter(nil, nil),
		Store:     f.store,
		Pacer:     pacer,
		Clock:     f.clock,
	}, cfg)
	require.NoError(t, err)
	return o
}

func TestCollectEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["acme"] = []string{"https://acme.com"}
	f.fetcher.pages["https://acme.com"] = "Fale com sales@acme.com ou noreply@acme.com"
	f.resolver.domains["acme.com"] = true

	rec := &recorder{}
	contacts, err := f.orchestrator(t, Config{}, nil).Collect(context.Background(), Request{Keywords: []string{"acme"}, MaxResults: 10}, rec)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, "sales@acme.com", contacts[0].Email)
	require.Equal(t, "acme", contacts[0].Keyword)
	require.Equal(t, "https://acme.com", contacts[0].Source)
	require.Equal(t, "Acme", contacts[0].Name)

	require.Equal(t, []progress.Kind{
		progress.KindKeywordStart,
		progress.KindSiteVisiting,
		progress.KindEmailFound,
		progress.KindKeywordComplete,
		progress.KindComplete,
	}, rec.kinds())
	complete := rec.ofKind(progress.KindComplete)[0]
	require.Equal(t, 1, complete.TotalEmails)

	pending, err := f.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestCollectReportsInvalidAndDedupes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["kw"] = []string{"https://a.com", "https://b.com"}
	f.fetcher.pages["https://a.com"] = "contato@semmx.com.br info@gmail.com"
	f.fetcher.pages["https://b.com"] = "contato@semmx.com.br vendas@b.com"
	f.resolver.domains["b.com"] = true

	rec := &recorder{}
	contacts, err := f.orchestrator(t, Config{}, nil).Collect(context.Background(), Request{Keywords: []string{"kw"}}, rec)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, "vendas@b.com", contacts[0].Email)

	invalid := rec.ofKind(progress.KindEmailInvalid)
	require.Len(t, invalid, 1)
	require.Equal(t, "contato@semmx.com.br", invalid[0].Email)
	require.Equal(t, validator.ReasonNoMX, invalid[0].Reason)
	require.Equal(t, 2, f.resolver.lookups)
}

func TestCollectStopsAtMaxResults(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["one"] = []string{"https://a.com"}
	f.planner.sites["two"] = []string{"https://b.com"}
	f.fetcher.pages["https://a.com"] = "x@a.com y@a.com z@a.com"
	f.fetcher.pages["https://b.com"] = "w@b.com"
	f.resolver.domains["a.com"] = true
	f.resolver.domains["b.com"] = true

	rec := &recorder{}
	contacts, err := f.orchestrator(t, Config{}, nil).Collect(context.Background(), Request{Keywords: []string{"one", "two"}, MaxResults: 2}, rec)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	require.Len(t, rec.ofKind(progress.KindKeywordStart), 1)
	require.Equal(t, 2, rec.ofKind(progress.KindKeywordComplete)[0].EmailsFound)
}

func TestCollectIsolatesKeywordErrors(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.errs["broken"] = fmt.Errorf("%w: captcha", harvest.ErrSearch)
	f.planner.sites["ok"] = []string{"https://ok.com"}
	f.fetcher.pages["https://ok.com"] = "sales@ok.com"
	f.resolver.domains["ok.com"] = true

	rec := &recorder{}
	contacts, err := f.orchestrator(t, Config{}, nil).Collect(context.Background(), Request{Keywords: []string{"broken", "ok"}}, rec)
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	errs := rec.ofKind(progress.KindError)
	require.Len(t, errs, 1)
	require.Equal(t, "broken", errs[0].Keyword)
	require.False(t, errs[0].Terminal())
	require.Len(t, rec.ofKind(progress.KindKeywordComplete), 1)
}

func TestCollectSuppressesKnownEmails(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["kw"] = []string{"https://acme.com"}
	f.fetcher.pages["https://acme.com"] = "sales@acme.com"
	f.resolver.domains["acme.com"] = true

	_, err := f.store.Save(context.Background(), []harvest.Contact{harvest.NewContact("sales@acme.com", "old", "kw", f.clock)})
	require.NoError(t, err)
	_, err = f.store.Move(context.Background(), []string{"sales@acme.com"})
	require.NoError(t, err)

	contacts, err := f.orchestrator(t, Config{SuppressSent: true}, nil).Collect(context.Background(), Request{Keywords: []string{"kw"}}, nil)
	require.NoError(t, err)
	require.Empty(t, contacts)
	require.Zero(t, f.resolver.lookups)

	contacts, err = f.orchestrator(t, Config{SuppressSent: false}, nil).Collect(context.Background(), Request{Keywords: []string{"kw"}}, nil)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
}

type cancelingPacer struct {
	cancel context.CancelFunc
	calls  int
}

func (p *cancelingPacer) Wait(ctx context.Context) (time.Duration, error) {
	p.calls++
	p.cancel()
	return 0, ctx.Err()
}

func TestCollectCancelBetweenKeywords(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["first"] = []string{"https://a.com"}
	f.planner.sites["second"] = []string{"https://b.com"}
	f.fetcher.pages["https://a.com"] = "sales@a.com"
	f.fetcher.pages["https://b.com"] = "sales@b.com"
	f.resolver.domains["a.com"] = true
	f.resolver.domains["b.com"] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pacer := &cancelingPacer{cancel: cancel}

	rec := &recorder{}
	contacts, err := f.orchestrator(t, Config{}, pacer).Collect(ctx, Request{Keywords: []string{"first", "second"}}, rec)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, "sales@a.com", contacts[0].Email)
	require.Equal(t, 1, pacer.calls)
	require.Len(t, rec.ofKind(progress.KindKeywordStart), 1)
	require.Len(t, rec.ofKind(progress.KindComplete), 1)

	// Partial results are still persisted.
	pending, err := f.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

type cancelingValidator struct {
	inner  Validator
	cancel context.CancelFunc
	mu     sync.Mutex
	calls  int
}

func (v *cancelingValidator) Check(ctx context.Context, email string) (harvest.Verdict, string) {
	verdict, reason := v.inner.Check(ctx, email)
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	v.cancel()
	return verdict, reason
}

func TestCollectCancelDuringValidation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["first"] = []string{"https://a.com"}
	f.planner.sites["second"] = []string{"https://b.com"}
	f.fetcher.pages["https://a.com"] = "sales@a.com contato@a.com vendas@a.com"
	f.fetcher.pages["https://b.com"] = "sales@b.com"
	f.resolver.domains["a.com"] = true
	f.resolver.domains["b.com"] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v := &cancelingValidator{
		inner:  validator.New(f.resolver, f.clock, validator.Config{Retries: -1}),
		cancel: cancel,
	}
	o, err := New(Deps{
		Planner:   f.planner,
		Visitor:   visitor.New(f.fetcher, visitor.Config{}),
		Validator: v,
		Filter:    emails.NewFilter(nil, nil),
		Store:     f.store,
		Clock:     f.clock,
	}, Config{})
	require.NoError(t, err)

	rec := &recorder{}
	contacts, err := o.Collect(ctx, Request{Keywords: []string{"first", "second"}}, rec)
	require.NoError(t, err)
	require.Equal(t, 1, v.calls)
	require.Len(t, contacts, 1)
	require.Equal(t, "sales@a.com", contacts[0].Email)
	require.Len(t, rec.ofKind(progress.KindKeywordStart), 1)
	require.Len(t, rec.ofKind(progress.KindComplete), 1)
	require.Equal(t, 1, rec.ofKind(progress.KindComplete)[0].TotalEmails)
}

type failingStore struct {
	*memory.ContactStore
}

func (failingStore) Save(context.Context, []harvest.Contact) (int, error) {
	return 0, fmt.Errorf("%w: disk full", harvest.ErrStorage)
}

func TestCollectPropagatesStorageError(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.planner.sites["kw"] = []string{"https://acme.com"}
	f.fetcher.pages["https://acme.com"] = "sales@acme.com"
	f.resolver.domains["acme.com"] = true

	o, err := New(Deps{
		Planner:   f.planner,
		Visitor:   visitor.New(f.fetcher, visitor.Config{}),
		Validator: validator.New(f.resolver, f.clock, validator.Config{Retries: -1}),
		Filter:    emails.NewFilter(nil, nil),
		Store:     failingStore{f.store},
		Clock:     f.clock,
	}, Config{})
	require.NoError(t, err)

	rec := &recorder{}
	_, err = o.Collect(context.Background(), Request{Keywords: []string{"kw"}}, rec)
	require.True(t, errors.Is(err, harvest.ErrStorage))
	errs := rec.ofKind(progress.KindError)
	require.Len(t, errs, 1)
	require.True(t, errs[0].Terminal())
	require.Empty(t, rec.ofKind(progress.KindComplete))
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{})
	require.ErrorIs(t, err, harvest.ErrInitialization)
}
