package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/metrics"
)

// Renderer loads a page in a browser, waiting settle before reading it.
type Renderer interface {
	Render(ctx context.Context, url string, settle time.Duration, dismissConsent bool) (harvest.Page, error)
}

// EngineConfig describes the search engine results page.
type EngineConfig struct {
	// URLTemplate receives the escaped query at %s.
	URLTemplate string
	// QuerySuffix is appended to every query, e.g. "contato email".
	QuerySuffix string
	// ChallengeWait is how long the first results page stays open so a
	// human (or the engine) can clear a challenge.
	ChallengeWait time.Duration
	// SettleWait is the wait for every later results page.
	SettleWait time.Duration
}

// EngineSearcher implements harvest.Searcher over a rendered results page.
type EngineSearcher struct {
	cfg      EngineConfig
	renderer Renderer
	logger   *zap.Logger

	mu       sync.Mutex
	searched bool
}

// NewEngineSearcher returns a searcher rendering through r.
func NewEngineSearcher(r Renderer, cfg EngineConfig, logger *zap.Logger) *EngineSearcher {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = "https://www.google.com/search?q=%s&num=30"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineSearcher{cfg: cfg, renderer: r, logger: logger}
}

// URL returns the results-page URL for query.
func (s *EngineSearcher) URL(query string) string {
	q := strings.TrimSpace(query)
	if s.cfg.QuerySuffix != "" {
		q += " " + s.cfg.QuerySuffix
	}
	return fmt.Sprintf(s.cfg.URLTemplate, url.QueryEscape(q))
}

// Search renders the results page for query and returns every link on it.
// Calls are serialized since they share one tab.
func (s *EngineSearcher) Search(ctx context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := !s.searched
	wait := s.cfg.SettleWait
	if first {
		wait = s.cfg.ChallengeWait
	}
	target := s.URL(query)
	s.logger.Debug("rendering results page",
		zap.String("query", query),
		zap.Duration("wait", wait),
		zap.Bool("first", first),
	)

	page, err := s.renderer.Render(ctx, target, wait, first)
	if err != nil {
		metrics.ObserveSearch("error", 0)
		return nil, fmt.Errorf("%w: %q: %w", harvest.ErrSearch, query, err)
	}
	s.searched = true
	metrics.ObserveSearch("success", len(page.Links))
	return page.Links, nil
}
