// Package app initializes and holds long-lived harvester services, acting as
// the dependency injection container shared by the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/clock/system"
	"github.com/JakeFAU/contact-harvester/internal/collector"
	"github.com/JakeFAU/contact-harvester/internal/config"
	"github.com/JakeFAU/contact-harvester/internal/dispatch"
	"github.com/JakeFAU/contact-harvester/internal/emails"
	collyfetcher "github.com/JakeFAU/contact-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/contact-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/logging"
	"github.com/JakeFAU/contact-harvester/internal/mailer/resend"
	"github.com/JakeFAU/contact-harvester/internal/mailer/smtp"
	"github.com/JakeFAU/contact-harvester/internal/metrics"
	"github.com/JakeFAU/contact-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/contact-harvester/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/contact-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/contact-harvester/internal/search"
	"github.com/JakeFAU/contact-harvester/internal/validator"
	"github.com/JakeFAU/contact-harvester/internal/visitor"
)

// App holds the shared services. It is built once per process and closed
// on shutdown.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    harvest.Clock
	store    harvest.Store
	filter   *emails.Filter
	validate *validator.Validator
	visitor  *visitor.Visitor
	browser  *headless.Browser
	searcher harvest.Searcher
	hub      *progress.Hub
	streams  *progresssinks.StreamSink
	pubsub   *gcppublisher.Publisher

	mailerMu sync.Mutex
	mailer   harvest.Mailer
}

// Option overrides a service Build would otherwise construct from config.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	clock      harvest.Clock
	store      harvest.Store
	resolver   harvest.Resolver
	fetcher    harvest.Fetcher
	searcher   harvest.Searcher
	mailer     harvest.Mailer
	registerer prometheus.Registerer
}

// WithLogger uses logger instead of building one from logging config.
func WithLogger(logger *zap.Logger) Option { return func(o *options) { o.logger = logger } }

// WithClock replaces the system clock.
func WithClock(clock harvest.Clock) Option { return func(o *options) { o.clock = clock } }

// WithStore replaces the configured contact store.
func WithStore(store harvest.Store) Option { return func(o *options) { o.store = store } }

// WithResolver replaces DNS MX resolution.
func WithResolver(r harvest.Resolver) Option { return func(o *options) { o.resolver = r } }

// WithFetcher replaces the site fetcher.
func WithFetcher(f harvest.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithSearcher replaces the browser-backed search engine.
func WithSearcher(s harvest.Searcher) Option { return func(o *options) { o.searcher = s } }

// WithMailer replaces the configured mail transport.
func WithMailer(m harvest.Mailer) Option { return func(o *options) { o.mailer = m } }

// WithRegisterer registers progress collectors somewhere other than the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Build creates the application's dependencies. Nothing here launches a
// browser or dials a mail relay; those happen on first use.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("%w: logger init failed: %w", harvest.ErrInitialization, err)
		}
	}
	clock := o.clock
	if clock == nil {
		clock = system.New()
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger, clock: clock, searcher: o.searcher, mailer: o.mailer}
	a.logger.Info("building application dependencies",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("fetcher", cfg.Fetcher.Kind),
		zap.String("mailer", cfg.Mailer.Provider),
	)

	a.store = o.store
	if a.store == nil {
		store, err := openStore(ctx, cfg.Storage, clock, logger)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	if err := a.setupProgress(ctx, o.registerer); err != nil {
		a.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	if err := a.setupPipeline(o); err != nil {
		a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) setupProgress(ctx context.Context, reg prometheus.Registerer) error {
	a.streams = progresssinks.NewStreamSink(a.cfg.Progress.BufferSize)
	sinkList := []progress.Sink{a.streams}

	if a.cfg.Progress.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
		a.logger.Debug("added progress log sink")
	}

	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("%w: progress metrics: %w", harvest.ErrInitialization, err)
	}
	sinkList = append(sinkList, promSink)

	if a.cfg.PubSub.TopicName != "" {
		a.pubsub, err = gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("%w: pubsub: %w", harvest.ErrInitialization, err)
		}
		sinkList = append(sinkList,
			progresssinks.NewPublishSink(a.pubsub, a.cfg.PubSub.TopicName, a.logger.Named("progress_pubsub")))
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
	}

	hubCfg := progress.Config{
		BufferSize:   a.cfg.Progress.BufferSize,
		MaxBatchWait: a.cfg.Progress.MaxBatchWait,
		Logger:       a.logger.Named("progress_hub"),
	}
	a.hub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Debug("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("sinks", len(sinkList)),
	)
	return nil
}

func (a *App) setupPipeline(o options) error {
	cfg := a.cfg
	a.filter = emails.NewFilter(cfg.Filter.BlockedDomains, cfg.Filter.BlockedPrefixes)

	resolver := o.resolver
	if resolver == nil {
		resolver = validator.NewNetResolver(nil)
	}
	retries := cfg.Validator.Retries
	if retries == 0 {
		// zero means "use the default" to the validator
		retries = -1
	}
	a.validate = validator.New(resolver, a.clock, validator.Config{
		LookupTimeout: cfg.Validator.LookupTimeout,
		Retries:       retries,
		BaseBackoff:   cfg.Validator.BaseBackoff,
		MaxBackoff:    cfg.Validator.MaxBackoff,
		CacheTTL:      cfg.Validator.CacheTTL,
	}, validator.WithLogger(a.logger.Named("validator")))

	needBrowser := o.searcher == nil || (o.fetcher == nil && cfg.Fetcher.Kind == "headless")
	if needBrowser {
		browser, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetcher.UserAgent,
			NavigationTimeout: cfg.Headless.NavigationTimeout,
			ExecPath:          cfg.Headless.ExecPath,
			Visible:           cfg.Headless.Visible,
		}, a.logger.Named("headless"))
		if err != nil {
			return fmt.Errorf("%w: headless browser: %w", harvest.ErrInitialization, err)
		}
		a.browser = browser
	}

	fetcher := o.fetcher
	if fetcher == nil {
		switch cfg.Fetcher.Kind {
		case "headless":
			fetcher = a.browser
			a.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		default:
			fetcher = collyfetcher.New(collyfetcher.Config{
				UserAgent:     cfg.Fetcher.UserAgent,
				RespectRobots: cfg.Fetcher.RespectRobots,
				Timeout:       cfg.Visitor.VisitTimeout,
			}, a.logger.Named("colly"))
			a.logger.Info("using colly fetcher", zap.String("user_agent", cfg.Fetcher.UserAgent))
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		PerHostRPS:   cfg.Visitor.PerHostRPS,
		PerHostBurst: cfg.Visitor.PerHostBurst,
	})
	a.visitor = visitor.New(fetcher, visitor.Config{
		MaxConcurrency: cfg.Visitor.MaxConcurrency,
		VisitTimeout:   cfg.Visitor.VisitTimeout,
		FollowContact:  cfg.Visitor.FollowContact,
	}, visitor.WithLimiter(limiter), visitor.WithLogger(a.logger.Named("visitor")))
	return nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the clock shared by the services.
func (a *App) Clock() harvest.Clock { return a.clock }

// Store returns the contact store.
func (a *App) Store() harvest.Store { return a.store }

// Streams returns the per-run subscription sink.
func (a *App) Streams() *progresssinks.StreamSink { return a.streams }

// StartRun returns an emitter stamping events with a fresh run ID and
// delivering them through the progress hub.
func (a *App) StartRun(flow progress.Flow) *progress.Run {
	return progress.NewRun(a.hub, flow)
}

// Planner returns a planner over searcher using the configured search
// settings.
func (a *App) Planner(searcher harvest.Searcher) *search.Planner {
	return search.NewPlanner(searcher, search.PlannerConfig{
		Region:   a.cfg.Search.Region,
		Terms:    a.cfg.Search.Terms,
		MaxLinks: a.cfg.Search.MaxLinks,
		Blocked:  search.NewBlocklist(nil, a.cfg.Search.BlockedHosts),
	})
}

// NewCollector builds an orchestrator for one run. The returned func
// releases the run's search tab.
func (a *App) NewCollector() (*collector.Orchestrator, func(), error) {
	searcher := a.searcher
	release := func() {}
	if searcher == nil {
		if a.browser == nil {
			return nil, nil, fmt.Errorf("%w: no search engine configured", harvest.ErrInitialization)
		}
		tab := a.browser.Tab()
		searcher = search.NewEngineSearcher(tab, search.EngineConfig{
			URLTemplate:   a.cfg.Search.URLTemplate,
			QuerySuffix:   a.cfg.Search.QuerySuffix,
			ChallengeWait: a.cfg.Search.ChallengeWait,
			SettleWait:    a.cfg.Search.SettleWait,
		}, a.logger.Named("search"))
		release = tab.Close
	}
	orch, err := collector.New(collector.Deps{
		Planner:   a.Planner(searcher),
		Visitor:   a.visitor,
		Validator: a.validate,
		Filter:    a.filter,
		Store:     a.store,
		Pacer:     &search.Pacer{Min: a.cfg.Search.KeywordDelayMin, Max: a.cfg.Search.KeywordDelayMax},
		Clock:     a.clock,
		Logger:    a.logger.Named("collector"),
	}, collector.Config{
		MaxResults:   a.cfg.Collect.MaxResults,
		SuppressSent: a.cfg.Collect.SuppressSent,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return orch, release, nil
}

// Collect runs one collection, reporting through emit.
func (a *App) Collect(ctx context.Context, req collector.Request, emit progress.Emitter) ([]harvest.Contact, error) {
	orch, release, err := a.NewCollector()
	if err != nil {
		return nil, err
	}
	defer release()
	return orch.Collect(ctx, req, emit)
}

// Mailer returns the configured transport, building it on first use.
func (a *App) Mailer() (harvest.Mailer, error) {
	a.mailerMu.Lock()
	defer a.mailerMu.Unlock()
	if a.mailer != nil {
		return a.mailer, nil
	}
	if err := a.cfg.ValidateMailer(); err != nil {
		return nil, fmt.Errorf("%w: %w", harvest.ErrInitialization, err)
	}
	var (
		m   harvest.Mailer
		err error
	)
	switch a.cfg.Mailer.Provider {
	case "resend":
		m, err = resend.New(a.cfg.Resend.APIKey, a.cfg.Mailer.From, a.logger)
	default:
		m, err = smtp.New(smtp.Config{
			Host:     a.cfg.SMTP.Host,
			Port:     a.cfg.SMTP.Port,
			Secure:   a.cfg.SMTP.Secure,
			Username: a.cfg.SMTP.Username,
			Password: a.cfg.SMTP.Password,
			From:     a.cfg.Mailer.From,
		}, a.logger)
	}
	if err != nil {
		return nil, err
	}
	a.mailer = m
	return m, nil
}

// Dispatcher returns an engine over the configured transport.
func (a *App) Dispatcher() (*dispatch.Engine, error) {
	m, err := a.Mailer()
	if err != nil {
		return nil, err
	}
	return dispatch.New(m,
		dispatch.WithSendTimeout(a.cfg.Dispatch.SendTimeout),
		dispatch.WithLogger(a.logger.Named("dispatch")),
	), nil
}

// Send verifies the transport, dispatches msg to contacts, and moves the
// delivered contacts to the sent partition. The move runs even when ctx is
// canceled mid-dispatch. Failures before the first send are reported as a
// terminal error event.
func (a *App) Send(
	ctx context.Context,
	contacts []harvest.Contact,
	msg harvest.Message,
	delay time.Duration,
	emit progress.Emitter,
) (harvest.DispatchResult, error) {
	return a.send(ctx, contacts, msg, delay, emit, true)
}

// SendTest dispatches msg to a single address and leaves the store as it is,
// even when the address is a pending contact.
func (a *App) SendTest(ctx context.Context, to string, msg harvest.Message, emit progress.Emitter) (harvest.DispatchResult, error) {
	contact := harvest.Contact{Name: "Test", Email: strings.TrimSpace(to)}
	return a.send(ctx, []harvest.Contact{contact}, msg, 0, emit, false)
}

func (a *App) send(
	ctx context.Context,
	contacts []harvest.Contact,
	msg harvest.Message,
	delay time.Duration,
	emit progress.Emitter,
	move bool,
) (harvest.DispatchResult, error) {
	if emit == nil {
		emit = progress.Discard
	}
	fail := func(err error) (harvest.DispatchResult, error) {
		emit.Emit(progress.Event{Kind: progress.KindError, Message: err.Error()})
		return harvest.DispatchResult{}, err
	}
	if len(contacts) == 0 {
		return fail(fmt.Errorf("%w: no pending contacts to send", harvest.ErrDispatch))
	}
	engine, err := a.Dispatcher()
	if err != nil {
		return fail(err)
	}
	if err := engine.Verify(ctx); err != nil {
		return fail(err)
	}
	emit.Emit(progress.Event{Kind: progress.KindStatus, Message: "Mail transport verified", Phase: "connected"})
	result := engine.Dispatch(ctx, contacts, msg, delay, emit)
	if !move || len(result.SentEmails) == 0 {
		return result, nil
	}
	moved, err := a.store.Move(context.WithoutCancel(ctx), result.SentEmails)
	if err != nil {
		return result, err
	}
	a.logger.Info("contacts moved to sent", zap.Int("moved", moved), zap.Int("sent", result.Sent))
	return result, nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.browser != nil {
		a.browser.Close()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("contact store close failed", zap.Error(err))
		}
	}
	// Sync fails on stdout/stderr for some platforms; nothing to do about it.
	_ = a.logger.Sync()
}
