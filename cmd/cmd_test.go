package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/api"
	"github.com/JakeFAU/contact-harvester/internal/app"
	"github.com/JakeFAU/contact-harvester/internal/clock/fake"
	"github.com/JakeFAU/contact-harvester/internal/config"
	"github.com/JakeFAU/contact-harvester/internal/export"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	"github.com/JakeFAU/contact-harvester/internal/storage/file"
	"github.com/JakeFAU/contact-harvester/internal/storage/memory"
)

type fakeSearcher struct{ urls []string }

func (f fakeSearcher) Search(context.Context, string) ([]string, error) { return f.urls, nil }

type fakeFetcher struct{ pages map[string]string }

func (f fakeFetcher) Fetch(_ context.Context, url string) (harvest.Page, error) {
	text, ok := f.pages[url]
	if !ok {
		return harvest.Page{}, errors.New("not found")
	}
	return harvest.Page{URL: url, Text: text}, nil
}

type fakeResolver struct{}

func (fakeResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	if domain == "nomx.com.br" {
		return nil, nil
	}
	return []*net.MX{{Host: "mx." + domain, Pref: 10}}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	msgs []harvest.Message
}

func (m *fakeMailer) Send(_ context.Context, to string, msg harvest.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *fakeMailer) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type harness struct {
	store     harvest.Store
	mailer    *fakeMailer
	exportDir string
	clock     *fake.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := fake.New(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return &harness{
		store:     memory.NewContactStore(clk),
		mailer:    &fakeMailer{},
		exportDir: t.TempDir(),
		clock:     clk,
	}
}

func (h *harness) factory(ctx context.Context, cfg config.Config) (App, error) {
	cfg.Search.KeywordDelayMin = 0
	cfg.Search.KeywordDelayMax = 0
	cfg.Visitor.PerHostRPS = 0
	cfg.Export.Dir = h.exportDir
	cfg.Dispatch.TemplatePath = ""
	return app.Build(ctx, cfg,
		app.WithLogger(zap.NewNop()),
		app.WithRegisterer(prometheus.NewRegistry()),
		app.WithClock(h.clock),
		app.WithStore(h.store),
		app.WithResolver(fakeResolver{}),
		app.WithSearcher(fakeSearcher{urls: []string{"https://acme.com.br", "https://beta.com.br"}}),
		app.WithFetcher(fakeFetcher{pages: map[string]string{
			"https://acme.com.br": "Fale com vendas@acme.com.br ou ti@nomx.com.br",
			"https://beta.com.br": "Contato: noreply@beta.com.br comercial@beta.com.br",
		}}),
		app.WithMailer(h.mailer),
	)
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{build: h.factory}
	root := c.newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	c.close(context.Background())
	return out.String(), err
}

func (h *harness) seed(t *testing.T, contacts ...harvest.Contact) {
	t.Helper()
	_, err := h.store.Save(context.Background(), contacts)
	require.NoError(t, err)
}

func emailsOf(cs []harvest.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Email
	}
	return out
}

func TestCollectCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out, err := h.run(t, "collect", "-k", "padaria", "--city", "Curitiba")
	require.NoError(t, err)
	require.Contains(t, out, `[1/1] searching "padaria"`)
	require.Contains(t, out, "+ vendas@acme.com.br")
	require.Contains(t, out, "2 new contacts saved")

	pending, err := h.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"vendas@acme.com.br", "comercial@beta.com.br"}, emailsOf(pending))
}

func TestCollectCommandRequiresKeyword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, "collect", "-k", " | ")
	require.ErrorContains(t, err, "--keyword")
}

func TestCollectCityRequiresCity(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, "collect-city")
	require.Error(t, err)
}

func TestSendCommandMovesDelivered(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.seed(t,
		harvest.Contact{Name: "Acme", Email: "vendas@acme.com.br", Keyword: "padaria"},
		harvest.Contact{Name: "Beta", Email: "comercial@beta.com.br", Keyword: "software house"},
	)
	body := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(body, []byte("Olá, tudo bem?"), 0o600))

	out, err := h.run(t, "send", "--subject", "Proposta", "--body-file", body, "--keyword", "padaria", "--delay", "0s")
	require.NoError(t, err)
	require.Contains(t, out, "sent vendas@acme.com.br")
	require.Contains(t, out, "Done: 1 sent, 0 failed")

	require.Equal(t, []string{"vendas@acme.com.br"}, h.mailer.Sent())
	require.Equal(t, harvest.Message{Subject: "Proposta", Text: "Olá, tudo bem?"}, h.mailer.msgs[0])

	sent, err := h.store.LoadSent(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"vendas@acme.com.br"}, emailsOf(sent))
	pending, err := h.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"comercial@beta.com.br"}, emailsOf(pending))
}

func TestSendCommandHTMLBodyAndOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.seed(t,
		harvest.Contact{Email: "a@acme.com.br"},
		harvest.Contact{Email: "b@beta.com.br"},
	)
	body := filepath.Join(t.TempDir(), "body.html")
	require.NoError(t, os.WriteFile(body, []byte("<p>Olá</p>"), 0o600))

	_, err := h.run(t, "send", "--body-file", body, "--only", "B@beta.com.br", "--delay", "0s")
	require.NoError(t, err)
	require.Equal(t, []string{"b@beta.com.br"}, h.mailer.Sent())
	require.Equal(t, "<p>Olá</p>", h.mailer.msgs[0].HTML)
	require.Equal(t, "Oportunidade Profissional", h.mailer.msgs[0].Subject)
}

func TestSendCommandTestAddress(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.seed(t, harvest.Contact{Email: "a@acme.com.br"})

	_, err := h.run(t, "send", "--test", "me@example.com", "--delay", "0s")
	require.NoError(t, err)
	require.Equal(t, []string{"me@example.com"}, h.mailer.Sent())

	pending, err := h.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestSendCommandTestAddressKeepsPendingContact(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.seed(t, harvest.Contact{Email: "a@acme.com.br"})

	_, err := h.run(t, "send", "--test", "a@acme.com.br")
	require.NoError(t, err)
	require.Equal(t, []string{"a@acme.com.br"}, h.mailer.Sent())

	pending, err := h.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	sent, err := h.store.LoadSent(context.Background())
	require.NoError(t, err)
	require.Empty(t, sent)
}

func TestSendCommandNothingSelected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, "send", "--delay", "0s")
	require.ErrorContains(t, err, "no pending contacts")
	require.Empty(t, h.mailer.Sent())
}

func TestListAndClearCommands(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.seed(t,
		harvest.Contact{Name: "Acme", Email: "a@acme.com.br", Keyword: "padaria"},
		harvest.Contact{Name: "Beta", Email: "b@beta.com.br", Keyword: "software house"},
		harvest.Contact{Name: "Gamma", Email: "c@gamma.com.br", Keyword: "padaria"},
	)
	_, err := h.store.Move(context.Background(), []string{"c@gamma.com.br"})
	require.NoError(t, err)

	out, err := h.run(t, "list", "--keyword", "PADARIA")
	require.NoError(t, err)
	require.Contains(t, out, "a@acme.com.br")
	require.NotContains(t, out, "b@beta.com.br")
	require.NotContains(t, out, "c@gamma.com.br")
	require.Contains(t, out, "1 contacts")

	out, err = h.run(t, "list", "--sent")
	require.NoError(t, err)
	require.Contains(t, out, "c@gamma.com.br")
	require.Contains(t, out, "1 contacts")

	out, err = h.run(t, "clear")
	require.NoError(t, err)
	require.Contains(t, out, "Pending contacts cleared")

	pending, err := h.store.LoadPending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
	sent, err := h.store.LoadSent(context.Background())
	require.NoError(t, err)
	require.Len(t, sent, 1)
}

func TestExportCommandCSV(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.seed(t,
		harvest.Contact{Name: "Acme", Email: "a@acme.com.br", Keyword: "padaria"},
		harvest.Contact{Name: "Beta", Email: "b@beta.com.br", Keyword: "padaria"},
	)
	_, err := h.store.Move(context.Background(), []string{"b@beta.com.br"})
	require.NoError(t, err)

	out, err := h.run(t, "export")
	require.NoError(t, err)
	require.Contains(t, out, "2 contacts exported")

	path := filepath.Join(h.exportDir, export.FileName("contacts", export.FormatCSV, h.clock.Now()))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, export.Header, rows[0])
}

func TestExportCommandRejectsFormat(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, "export", "--format", "pdf")
	require.ErrorContains(t, err, "unsupported export format")
}

func TestImportLegacyCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	dir := t.TempDir()
	store, err := file.New(filepath.Join(dir, "contacts.json"), h.clock, zap.NewNop())
	require.NoError(t, err)
	h.store = store

	pendingPath := filepath.Join(dir, "empresas.json")
	sentPath := filepath.Join(dir, "enviados.json")
	require.NoError(t, os.WriteFile(pendingPath,
		[]byte(`{"companies":[{"name":"Acme","email":"a@acme.com.br","keyword":"padaria"}]}`), 0o600))
	require.NoError(t, os.WriteFile(sentPath,
		[]byte(`{"companies":[{"name":"Beta","email":"b@beta.com.br","keyword":"padaria"}]}`), 0o600))

	out, err := h.run(t, "import-legacy", "--pending", pendingPath, "--sent", sentPath)
	require.NoError(t, err)
	require.Contains(t, out, "2 contacts imported")

	sent, err := store.LoadSent(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"b@beta.com.br"}, emailsOf(sent))
}

func TestImportLegacyNeedsFileStore(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, "import-legacy", "--pending", "missing.json")
	require.ErrorContains(t, err, "cannot import legacy files")
}

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		evt  progress.Event
		want string
	}{
		{"keyword start", progress.Event{Kind: progress.KindKeywordStart, Keyword: "padaria", Index: 0, Total: 3}, `[1/3] searching "padaria"`},
		{"invalid", progress.Event{Kind: progress.KindEmailInvalid, Email: "x@nomx.com.br", Reason: "no MX records"}, "  - x@nomx.com.br (no MX records)"},
		{"keyword error", progress.Event{Kind: progress.KindError, Keyword: "padaria", Message: "search failed"}, `  error on "padaria": search failed`},
		{"fatal error", progress.Event{Kind: progress.KindError, Message: "boom"}, "error: boom"},
		{"collect complete", progress.Event{Kind: progress.KindComplete, Flow: progress.FlowCollect, TotalEmails: 4}, "Done: 4 emails collected"},
		{"dispatch complete", progress.Event{Kind: progress.KindComplete, Flow: progress.FlowDispatch, Sent: 2, Failed: 1, Canceled: true}, "Done: 2 sent, 1 failed (canceled)"},
		{"failed", progress.Event{Kind: progress.KindFailed, Email: "a@b.com", Error: "550"}, "  failed a@b.com: 550"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, formatEvent(tt.evt))
		})
	}
}

func TestPrinterStampsFlow(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newPrinter(&buf, progress.FlowDispatch)
	p.Emit(progress.Event{Kind: progress.KindComplete, Sent: 1})
	p.Emit(progress.Event{Kind: "unknown"})
	require.Equal(t, "Done: 1 sent, 0 failed\n", buf.String())
}

func TestListenPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	require.Equal(t, 9090, listenPort(8080))

	t.Setenv("PORT", "nope")
	require.Equal(t, 8080, listenPort(8080))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cfg, err := config.Load("")
	require.NoError(t, err)
	appInstance, err := h.factory(context.Background(), cfg)
	require.NoError(t, err)
	defer appInstance.Close(context.Background())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, lis, api.NewServer(appInstance, zap.NewNop()), zap.NewNop())
	}()

	url := "http://" + lis.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
