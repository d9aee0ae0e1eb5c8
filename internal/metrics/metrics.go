// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchPagesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	searchQueriesTotal         *prometheus.CounterVec
	searchLinksTotal           prometheus.Counter
	dnsLookupsTotal            *prometheus.CounterVec
	dnsLookupDurationSeconds   prometheus.Histogram
	validationCacheTotal       *prometheus.CounterVec
	validationVerdictsTotal    *prometheus.CounterVec
	dispatchSendsTotal         *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times; every Observe helper calls it.
func Init() {
	once.Do(func() {
		fetchPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_pages_total",
				Help: "Total pages fetched, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Page fetch latency, labeled by outcome.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"outcome"},
		)

		searchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_search_queries_total",
				Help: "Search queries resolved, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		searchLinksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_search_links_total",
				Help: "Candidate links kept after filtering search results.",
			},
		)

		dnsLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_dns_lookups_total",
				Help: "MX lookup attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		dnsLookupDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_dns_lookup_duration_seconds",
				Help:    "MX lookup attempt latency.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		validationCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_validation_cache_total",
				Help: "Validation cache lookups, labeled by result (hit or miss).",
			},
			[]string{"result"},
		)

		validationVerdictsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_validation_verdicts_total",
				Help: "Deliverability verdicts, labeled by verdict.",
			},
			[]string{"verdict"},
		)

		dispatchSendsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_dispatch_sends_total",
				Help: "Messages dispatched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records a page fetch.
func ObserveFetch(site, outcome string, duration time.Duration) {
	Init()
	fetchPagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
	fetchDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveSearch records a resolved search query and the links it kept.
func ObserveSearch(outcome string, links int) {
	Init()
	searchQueriesTotal.WithLabelValues(outcome).Inc()
	if links > 0 {
		searchLinksTotal.Add(float64(links))
	}
}

// ObserveDNSLookup records one MX lookup attempt.
func ObserveDNSLookup(outcome string, duration time.Duration) {
	Init()
	dnsLookupsTotal.WithLabelValues(outcome).Inc()
	dnsLookupDurationSeconds.Observe(duration.Seconds())
}

// ObserveValidationCache records a cache hit or miss.
func ObserveValidationCache(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	validationCacheTotal.WithLabelValues(result).Inc()
}

// ObserveVerdict records a deliverability verdict.
func ObserveVerdict(verdict string) {
	Init()
	validationVerdictsTotal.WithLabelValues(verdict).Inc()
}

// ObserveSend records a dispatch attempt outcome ("sent" or "failed").
func ObserveSend(outcome string) {
	Init()
	dispatchSendsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
