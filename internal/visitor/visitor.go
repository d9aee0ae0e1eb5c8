// Package visitor fetches candidate sites concurrently and extracts the
// email addresses they publish.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/contact-harvester/internal/emails"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/progress"
)

// ContactPathTokens mark links that usually lead to a contact page.
var ContactPathTokens = []string{"contato", "contact", "fale-conosco", "fale_conosco"}

// Waiter delays a request to rawURL, e.g. for per-host politeness.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config bounds a batch of visits.
type Config struct {
	// MaxConcurrency caps simultaneous fetches. Defaults to 4.
	MaxConcurrency int
	// VisitTimeout bounds each fetch. Defaults to 15s.
	VisitTimeout time.Duration
	// FollowContact fetches one contact page when the landing page has no
	// addresses.
	FollowContact bool
}

// Visitor runs bounded batches of site fetches.
type Visitor struct {
	fetcher harvest.Fetcher
	cfg     Config
	limiter Waiter
	logger  *zap.Logger
}

// Option customizes a Visitor.
type Option func(*Visitor)

// WithLimiter spaces requests to the same host.
func WithLimiter(w Waiter) Option {
	return func(v *Visitor) {
		v.limiter = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Visitor) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New returns a Visitor over fetcher.
func New(fetcher harvest.Fetcher, cfg Config, opts ...Option) *Visitor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.VisitTimeout <= 0 {
		cfg.VisitTimeout = 15 * time.Second
	}
	v := &Visitor{fetcher: fetcher, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Visit fetches every URL and returns one result per URL in input order.
// A failed fetch yields an empty result with Err set; it never affects
// other URLs. Once ctx is done, visits not yet started are skipped; visits
// already running finish under their own timeout. keyword and emit are
// used for site-visiting events; emit may be nil.
func (v *Visitor) Visit(ctx context.Context, urls []string, keyword string, emit progress.Emitter) []harvest.SiteResult {
	if emit == nil {
		emit = progress.Discard
	}
	results := make([]harvest.SiteResult, len(urls))
	for i, u := range urls {
		results[i].URL = u
	}

	g := new(errgroup.Group)
	g.SetLimit(v.cfg.MaxConcurrency)
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(urls); j++ {
				results[j].Err = fmt.Errorf("visit skipped: %w", err)
			}
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = fmt.Errorf("visit skipped: %w", err)
				return nil
			}
			emit.Emit(progress.Event{Kind: progress.KindSiteVisiting, Site: u, Keyword: keyword})
			results[i].Emails, results[i].Err = v.visitOne(context.WithoutCancel(ctx), u)
			return nil
		})
	}
	// Workers never return errors; failures live in results.
	_ = g.Wait()
	return results
}

// VisitAll maps each URL to its extracted addresses.
func (v *Visitor) VisitAll(ctx context.Context, urls []string) map[string][]string {
	out := make(map[string][]string, len(urls))
	for _, r := range v.Visit(ctx, urls, "", nil) {
		out[r.URL] = r.Emails
	}
	return out
}

func (v *Visitor) visitOne(ctx context.Context, rawURL string) ([]string, error) {
	page, err := v.fetch(ctx, rawURL)
	if err != nil {
		v.logger.Debug("visit failed", zap.String("site", rawURL), zap.Error(err))
		return nil, err
	}
	found := emails.Extract(page.Text)
	if len(found) > 0 || !v.cfg.FollowContact {
		return found, nil
	}

	contactURL := ContactLink(page)
	if contactURL == "" {
		return found, nil
	}
	contactPage, err := v.fetch(ctx, contactURL)
	if err != nil {
		v.logger.Debug("contact page failed", zap.String("site", rawURL), zap.String("contact", contactURL), zap.Error(err))
		return found, nil
	}
	return emails.Extract(contactPage.Text), nil
}

func (v *Visitor) fetch(ctx context.Context, rawURL string) (harvest.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.VisitTimeout)
	defer cancel()
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx, rawURL); err != nil {
			return harvest.Page{}, fmt.Errorf("%w: %s: %w", harvest.ErrFetch, rawURL, err)
		}
	}
	page, err := v.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if errors.Is(err, harvest.ErrFetch) {
			return harvest.Page{}, err
		}
		return harvest.Page{}, fmt.Errorf("%w: %s: %w", harvest.ErrFetch, rawURL, err)
	}
	return page, nil
}

// ContactLink returns the first link on page that stays on the same site
// and looks like a contact page, or "".
func ContactLink(page harvest.Page) string {
	base, err := url.Parse(page.URL)
	if err != nil {
		return ""
	}
	site := siteHost(base.Hostname())
	for _, link := range page.Links {
		u, err := url.Parse(link)
		if err != nil || siteHost(u.Hostname()) != site {
			continue
		}
		if u.String() == base.String() {
			continue
		}
		lower := strings.ToLower(u.Path + "?" + u.RawQuery)
		for _, token := range ContactPathTokens {
			if strings.Contains(lower, token) {
				return link
			}
		}
	}
	return ""
}

func siteHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
