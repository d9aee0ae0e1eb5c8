package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// AllCities is the city value meaning "no city filter".
const AllCities = "all"

// PlannerConfig shapes queries and link filtering.
type PlannerConfig struct {
	// Region is appended to keywords without a city, e.g. "Brasil".
	Region string
	// Terms is the keyword list expanded by PlanCity.
	Terms    []string
	MaxLinks int
	Blocked  *Blocklist
}

// Planner maps keywords to queries and queries to candidate URLs.
type Planner struct {
	cfg      PlannerConfig
	searcher harvest.Searcher
}

// NewPlanner returns a planner resolving queries through searcher.
func NewPlanner(searcher harvest.Searcher, cfg PlannerConfig) *Planner {
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultMaxLinks
	}
	if cfg.Blocked == nil {
		cfg.Blocked = NewBlocklist(nil, nil)
	}
	return &Planner{cfg: cfg, searcher: searcher}
}

// Plan returns the queries for one keyword.
func (p *Planner) Plan(keyword, city string) []string {
	return []string{p.Query(keyword, city)}
}

// Query builds the single query string for keyword and city.
func (p *Planner) Query(keyword, city string) string {
	keyword = strings.TrimSpace(keyword)
	city = strings.TrimSpace(city)
	if city != "" && !strings.EqualFold(city, AllCities) {
		return keyword + " em " + city
	}
	if p.cfg.Region == "" {
		return keyword
	}
	return keyword + " " + p.cfg.Region
}

// PlanCity returns one query per configured term for city.
func (p *Planner) PlanCity(city string) []string {
	out := make([]string, 0, len(p.cfg.Terms))
	for _, term := range p.cfg.Terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		out = append(out, p.Query(term, city))
	}
	return out
}

// Terms returns the configured term list.
func (p *Planner) Terms() []string {
	return append([]string(nil), p.cfg.Terms...)
}

// Resolve runs query and returns the filtered candidate URLs.
func (p *Planner) Resolve(ctx context.Context, query string) ([]string, error) {
	if p.searcher == nil {
		return nil, fmt.Errorf("%w: no searcher configured", harvest.ErrSearch)
	}
	links, err := p.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return FilterLinks(links, p.cfg.Blocked, p.cfg.MaxLinks), nil
}

// SplitKeywords splits "a | b | c" into trimmed, non-empty keywords.
func SplitKeywords(raw string) []string {
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
