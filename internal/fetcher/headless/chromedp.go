// Package headless contains fetchers that execute JavaScript via browsers.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/fetcher"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/metrics"
)

// consentScript clicks a cookie-consent button when the page shows one.
const consentScript = `(() => {
	const b = document.querySelector('button[id*="accept"], button[id*="L2AGLb"]');
	if (!b) { return false; }
	b.click();
	return true;
})()`

// Config controls the behavior of the headless browser.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	ExecPath          string
	Visible           bool
}

// Browser owns one Chrome process. Fetch opens a short-lived tab per page;
// Tab returns a long-lived tab for search result pages.
type Browser struct {
	cfg         Config
	limiter     chan struct{}
	logger      *zap.Logger
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewChromedp prepares a browser. Chrome starts on Start or first use.
func NewChromedp(cfg Config, logger *zap.Logger) (*Browser, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Visible {
		opts = append(opts, chromedp.Flag("headless", false))
	} else {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	return &Browser{
		cfg:         cfg,
		limiter:     limiter,
		logger:      logger,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// Start launches Chrome. A failure here is fatal to the run.
func (b *Browser) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(b.browserCtx) }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: launch browser: %w", harvest.ErrInitialization, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: launch browser: %w", harvest.ErrInitialization, ctx.Err())
	}
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}

// Fetch navigates a fresh tab to url and returns the rendered page.
func (b *Browser) Fetch(ctx context.Context, url string) (harvest.Page, error) {
	if err := b.acquire(ctx); err != nil {
		return harvest.Page{}, fmt.Errorf("%w: %s: %w", harvest.ErrFetch, url, err)
	}
	defer b.release()

	start := time.Now()
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	page, err := b.render(tabCtx, url, 500*time.Millisecond, false)
	if err != nil {
		metrics.ObserveFetch(metrics.SanitizeSite(url), "error", time.Since(start))
		return harvest.Page{}, fmt.Errorf("%w: %s: %w", harvest.ErrFetch, url, err)
	}
	metrics.ObserveFetch(metrics.SanitizeSite(url), "success", time.Since(start))
	return page, nil
}

// Tab is a reusable browser tab. It is not safe for concurrent use.
type Tab struct {
	b      *Browser
	ctx    context.Context
	cancel context.CancelFunc
}

// Tab opens a long-lived tab.
func (b *Browser) Tab() *Tab {
	ctx, cancel := chromedp.NewContext(b.browserCtx)
	return &Tab{b: b, ctx: ctx, cancel: cancel}
}

// Render navigates to url, waits settle for challenges or late scripts, and
// returns the page. dismissConsent clicks a cookie banner when present.
func (t *Tab) Render(ctx context.Context, url string, settle time.Duration, dismissConsent bool) (harvest.Page, error) {
	stop := context.AfterFunc(ctx, t.cancel)
	defer stop()
	page, err := t.b.render(t.ctx, url, settle, dismissConsent)
	if err != nil && ctx.Err() != nil {
		return harvest.Page{}, fmt.Errorf("render canceled: %w", ctx.Err())
	}
	return page, err
}

// Close closes the tab.
func (t *Tab) Close() {
	t.cancel()
}

func (b *Browser) render(tabCtx context.Context, url string, settle time.Duration, dismissConsent bool) (harvest.Page, error) {
	runCtx, cancel := context.WithTimeout(tabCtx, b.navTimeout()+settle)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(runCtx, meta.captureEvent)

	html, finalURL, err := b.runHeadless(runCtx, url, settle, dismissConsent)
	if err != nil {
		return harvest.Page{}, err
	}
	status, pageURL := meta.snapshotWithFallbacks(url, finalURL)
	if status >= http.StatusBadRequest {
		return harvest.Page{}, fmt.Errorf("status %d", status)
	}
	page, err := fetcher.ParsePage(pageURL, strings.NewReader(html))
	if err != nil {
		return harvest.Page{}, fmt.Errorf("parse rendered page: %w", err)
	}
	return page, nil
}

func (b *Browser) runHeadless(ctx context.Context, url string, settle time.Duration, dismissConsent bool) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		b.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	if dismissConsent {
		actions = append(actions, b.consentAction())
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (b *Browser) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// consentAction never fails the render; a missing banner is normal.
func (b *Browser) consentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Evaluate(consentScript, &clicked).Do(ctx); err != nil {
			b.logger.Debug("consent banner check failed", zap.Error(err))
			return nil
		}
		if clicked {
			b.logger.Debug("dismissed consent banner")
			return chromedp.Sleep(1500 * time.Millisecond).Do(ctx)
		}
		return nil
	})
}

func (b *Browser) acquire(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	select {
	case b.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (b *Browser) release() {
	if b.limiter == nil {
		return
	}
	select {
	case <-b.limiter:
	default:
	}
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

// snapshotWithFallbacks prefers the browser's final location over the last
// document response, since in-page redirects do not produce one.
func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	status, url := m.snapshot()
	switch {
	case finalURL != "":
		url = finalURL
	case url != "":
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}

func (b *Browser) navTimeout() time.Duration {
	if b.cfg.NavigationTimeout > 0 {
		return b.cfg.NavigationTimeout
	}
	return 45 * time.Second
}
