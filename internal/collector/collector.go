// Package collector drives a collection run: for each keyword it searches,
// visits the candidate sites, filters and validates the addresses found, and
// accumulates contacts until the result cap is reached.
package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/progress"
)

// Phase is the run state carried by status events.
type Phase string

// Run phases.
const (
	PhaseInit       Phase = "init"
	PhaseSearching  Phase = "searching"
	PhaseWaiting    Phase = "waiting"
	PhaseVisiting   Phase = "visiting"
	PhaseValidating Phase = "validating"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// DefaultMaxResults caps a run when the request does not.
const DefaultMaxResults = 10

// Planner maps a keyword to queries and a query to candidate URLs.
type Planner interface {
	Plan(keyword, city string) []string
	Resolve(ctx context.Context, query string) ([]string, error)
}

// SiteVisitor fetches a batch of sites and extracts their addresses.
type SiteVisitor interface {
	Visit(ctx context.Context, urls []string, keyword string, emit progress.Emitter) []harvest.SiteResult
}

// Validator decides deliverability and explains rejections.
type Validator interface {
	Check(ctx context.Context, email string) (harvest.Verdict, string)
}

// Filter rejects non-business addresses.
type Filter interface {
	IsBusinessEmail(email string) bool
}

// Pacer pauses between keywords.
type Pacer interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// Config tunes a collection run.
type Config struct {
	// MaxResults applies when a request leaves it unset.
	MaxResults int
	// SuppressSent skips addresses the store already holds, pending or
	// sent, before spending a DNS lookup on them.
	SuppressSent bool
}

// Request names the keywords of one run.
type Request struct {
	Keywords   []string
	City       string
	MaxResults int
}

// Orchestrator runs collections. It is safe for concurrent runs as long as
// its collaborators are.
type Orchestrator struct {
	planner   Planner
	visitor   SiteVisitor
	validator Validator
	filter    Filter
	store     harvest.Store
	pacer     Pacer
	clock     harvest.Clock
	cfg       Config
	logger    *zap.Logger
}

// Deps are the collaborators of an Orchestrator. Store and Pacer are
// optional.
type Deps struct {
	Planner   Planner
	Visitor   SiteVisitor
	Validator Validator
	Filter    Filter
	Store     harvest.Store
	Pacer     Pacer
	Clock     harvest.Clock
	Logger    *zap.Logger
}

// New returns an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Planner == nil:
		return nil, fmt.Errorf("%w: planner is required", harvest.ErrInitialization)
	case deps.Visitor == nil:
		return nil, fmt.Errorf("%w: visitor is required", harvest.ErrInitialization)
	case deps.Validator == nil:
		return nil, fmt.Errorf("%w: validator is required", harvest.ErrInitialization)
	case deps.Filter == nil:
		return nil, fmt.Errorf("%w: filter is required", harvest.ErrInitialization)
	case deps.Clock == nil:
		return nil, fmt.Errorf("%w: clock is required", harvest.ErrInitialization)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		planner:   deps.Planner,
		visitor:   deps.Visitor,
		validator: deps.Validator,
		filter:    deps.Filter,
		store:     deps.Store,
		pacer:     deps.Pacer,
		clock:     deps.Clock,
		cfg:       cfg,
		logger:    logger.Named("collector"),
	}, nil
}

// run is the state of one Collect call.
type run struct {
	o        *Orchestrator
	emit     progress.Emitter
	max      int
	seen     map[string]struct{}
	known    map[string]struct{}
	found    []harvest.Contact
	canceled bool
}

// Collect runs req and returns the contacts found, in discovery order.
//
// ctx is checked before each keyword and each validation; once it is done
// no new search or validation starts, the partial result is still saved,
// and complete is emitted. Search and visit failures are reported per
// keyword and never stop the run. Only store failures are returned.
func (o *Orchestrator) Collect(ctx context.Context, req Request, emit progress.Emitter) ([]harvest.Contact, error) {
	if emit == nil {
		emit = progress.Discard
	}
	r := &run{
		o:    o,
		emit: emit,
		max:  req.MaxResults,
		seen: make(map[string]struct{}),
	}
	if r.max <= 0 {
		r.max = o.cfg.MaxResults
	}
	r.status(PhaseInit, fmt.Sprintf("Starting collection of %d keyword(s)", len(req.Keywords)))

	if o.cfg.SuppressSent && o.store != nil {
		known, err := o.knownEmails(ctx)
		if err != nil {
			return nil, r.fail(err)
		}
		r.known = known
	}

	for i, keyword := range req.Keywords {
		if r.full() {
			r.status(PhaseComplete, fmt.Sprintf("Limit of %d emails reached", r.max))
			break
		}
		if ctx.Err() != nil {
			r.canceled = true
			break
		}
		if i > 0 && o.pacer != nil {
			r.status(PhaseWaiting, "Waiting before the next search")
			if _, err := o.pacer.Wait(ctx); err != nil {
				r.canceled = true
				break
			}
		}
		r.keyword(ctx, i, len(req.Keywords), keyword, req.City)
		if r.canceled {
			break
		}
	}

	if r.canceled {
		o.logger.Info("collection canceled", zap.Int("found", len(r.found)))
		r.status(PhaseComplete, "Collection canceled")
	}
	if o.store != nil && len(r.found) > 0 {
		added, err := o.store.Save(context.WithoutCancel(ctx), r.found)
		if err != nil {
			return r.found, r.fail(err)
		}
		o.logger.Info("contacts saved", zap.Int("found", len(r.found)), zap.Int("added", added))
	}
	emit.Emit(progress.Event{
		Kind:        progress.KindComplete,
		TotalEmails: len(r.found),
		Companies:   append([]harvest.Contact(nil), r.found...),
	})
	return r.found, nil
}

func (r *run) keyword(ctx context.Context, index, total int, keyword, city string) {
	o := r.o
	r.emit.Emit(progress.Event{Kind: progress.KindKeywordStart, Keyword: keyword, Index: index, Total: total})
	logger := o.logger.With(zap.String("keyword", keyword))

	for _, query := range o.planner.Plan(keyword, city) {
		if r.full() {
			break
		}
		if ctx.Err() != nil {
			r.canceled = true
			return
		}
		r.status(PhaseSearching, fmt.Sprintf("Searching: %s", query))
		sites, err := o.planner.Resolve(ctx, query)
		if err != nil {
			logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			r.emit.Emit(progress.Event{Kind: progress.KindError, Keyword: keyword, Message: err.Error()})
			return
		}
		r.status(PhaseVisiting, fmt.Sprintf("Found %d sites for %q", len(sites), keyword))

		for _, result := range o.visitor.Visit(ctx, sites, keyword, r.emit) {
			if result.Err != nil {
				logger.Debug("site yielded nothing", zap.String("site", result.URL), zap.Error(result.Err))
			}
			for _, email := range result.Emails {
				if r.full() {
					break
				}
				if ctx.Err() != nil {
					r.canceled = true
					return
				}
				r.consider(ctx, email, result.URL, keyword)
			}
		}
	}
	r.emit.Emit(progress.Event{Kind: progress.KindKeywordComplete, Keyword: keyword, EmailsFound: len(r.found)})
}

// consider runs one raw address through dedupe, filter, and validation.
func (r *run) consider(ctx context.Context, email, source, keyword string) {
	o := r.o
	key := harvest.NormalizeEmail(email)
	if _, dup := r.seen[key]; dup {
		return
	}
	r.seen[key] = struct{}{}
	if !o.filter.IsBusinessEmail(key) {
		return
	}
	if _, ok := r.known[key]; ok {
		return
	}

	r.status(PhaseValidating, fmt.Sprintf("Validating %s", key))
	verdict, reason := o.validator.Check(context.WithoutCancel(ctx), key)
	if !verdict.Valid() {
		r.emit.Emit(progress.Event{Kind: progress.KindEmailInvalid, Email: key, Reason: reason})
		return
	}
	contact := harvest.NewContact(key, source, keyword, o.clock)
	r.found = append(r.found, contact)
	r.emit.Emit(progress.Event{Kind: progress.KindEmailFound, Email: key, Contact: &contact})
}

func (r *run) full() bool {
	return len(r.found) >= r.max
}

func (r *run) status(phase Phase, message string) {
	r.emit.Emit(progress.Event{Kind: progress.KindStatus, Phase: string(phase), Message: message})
}

// fail reports a run-ending error and returns it.
func (r *run) fail(err error) error {
	r.o.logger.Error("collection failed", zap.Error(err))
	r.emit.Emit(progress.Event{Kind: progress.KindError, Message: err.Error()})
	return err
}

func (o *Orchestrator) knownEmails(ctx context.Context) (map[string]struct{}, error) {
	known := make(map[string]struct{})
	pending, err := o.store.LoadPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending: %w", err)
	}
	sent, err := o.store.LoadSent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sent: %w", err)
	}
	for _, c := range pending {
		known[c.Key()] = struct{}{}
	}
	for _, c := range sent {
		known[c.Key()] = struct{}{}
	}
	return known, nil
}
