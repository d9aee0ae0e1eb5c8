package validator

import (
	"context"
	"errors"
	"net"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/metrics"
)

// Rejection reasons reported alongside an invalid verdict.
const (
	ReasonFormat    = "invalid format"
	ReasonNoMX      = "no MX record"
	ReasonDNSFailed = "dns lookup failed"
)

const (
	defaultLookupTimeout = 5 * time.Second
	defaultRetries       = 2
	defaultBaseBackoff   = 500 * time.Millisecond
)

var formatPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config tunes MX resolution.
type Config struct {
	// LookupTimeout bounds each MX attempt (default 5s).
	LookupTimeout time.Duration
	// Retries is the number of extra attempts after a failed lookup
	// (default 2). Negative disables retries.
	Retries int
	// BaseBackoff is the wait before the first retry; it doubles per retry
	// (default 500ms).
	BaseBackoff time.Duration
	// MaxBackoff caps a single wait when positive.
	MaxBackoff time.Duration
	// CacheTTL is how long a domain verdict is reused (default 5m).
	CacheTTL time.Duration
}

// Option customizes a Validator.
type Option func(*Validator)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithCache shares an existing cache.
func WithCache(cache *Cache) Option {
	return func(v *Validator) {
		if cache != nil {
			v.cache = cache
		}
	}
}

// Validator checks deliverability. Safe for concurrent use.
type Validator struct {
	resolver harvest.Resolver
	cache    *Cache
	policy   *BackoffPolicy
	pause    pauser
	timeout  time.Duration
	logger   *zap.Logger
}

// New builds a Validator on top of resolver.
func New(resolver harvest.Resolver, clock harvest.Clock, cfg Config, opts ...Option) *Validator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	v := &Validator{
		resolver: resolver,
		cache:    NewCache(cfg.CacheTTL, clock),
		policy:   NewBackoffPolicy(cfg.Retries, cfg.BaseBackoff, cfg.MaxBackoff),
		pause:    timerPauser{},
		timeout:  cfg.LookupTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the verdict for email.
func (v *Validator) Validate(ctx context.Context, email string) harvest.Verdict {
	verdict, _ := v.Check(ctx, email)
	return verdict
}

// Check returns the verdict for email and, when invalid, the reason.
// Resolution failures never surface as errors; they yield an invalid verdict.
func (v *Validator) Check(ctx context.Context, email string) (harvest.Verdict, string) {
	if !formatPattern.MatchString(email) {
		metrics.ObserveVerdict(string(harvest.VerdictInvalid))
		return harvest.VerdictInvalid, ReasonFormat
	}
	domain := harvest.Domain(email)
	if entry, ok := v.cache.Get(domain); ok {
		metrics.ObserveValidationCache(true)
		metrics.ObserveVerdict(string(entry.Verdict))
		return entry.Verdict, entry.Reason
	}
	metrics.ObserveValidationCache(false)

	verdict, reason, err := v.resolve(ctx, domain)
	if err != nil {
		v.logger.Debug("mx resolution failed",
			zap.String("domain", domain),
			zap.Error(errors.Join(harvest.ErrValidation, err)),
		)
	}
	// A lookup cut short by the caller is not a verdict about the domain.
	if ctx.Err() == nil {
		v.cache.Put(domain, verdict, reason)
	}
	metrics.ObserveVerdict(string(verdict))
	return verdict, reason
}

func (v *Validator) resolve(ctx context.Context, domain string) (harvest.Verdict, string, error) {
	for attempt := 0; ; attempt++ {
		records, err := v.lookup(ctx, domain)
		if err == nil {
			if len(records) == 0 {
				return harvest.VerdictInvalid, ReasonNoMX, nil
			}
			return harvest.VerdictValid, "", nil
		}
		if !v.policy.ShouldRetry(err, attempt) {
			return harvest.VerdictInvalid, reasonFor(err), err
		}
		if perr := v.pause.Pause(ctx, v.policy.Backoff(attempt)); perr != nil {
			return harvest.VerdictInvalid, ReasonDNSFailed, perr
		}
	}
}

func (v *Validator) lookup(ctx context.Context, domain string) ([]*net.MX, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	start := time.Now()
	records, err := v.resolver.LookupMX(ctx, domain)
	outcome := "ok"
	switch {
	case err == nil && len(records) == 0:
		outcome = "empty"
	case err != nil && isNotFound(err):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.ObserveDNSLookup(outcome, time.Since(start))
	return records, err
}

func reasonFor(err error) string {
	if isNotFound(err) {
		return ReasonNoMX
	}
	return ReasonDNSFailed
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
