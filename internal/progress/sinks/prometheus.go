package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/contact-harvester/internal/progress"
)

// PrometheusSink turns progress events into run and pipeline counters.
type PrometheusSink struct {
	runsCompleted   *prometheus.CounterVec
	keywords        *prometheus.CounterVec
	sitesVisited    prometheus.Counter
	emailsFound     prometheus.Counter
	emailsInvalid   prometheus.Counter
	dispatchResults *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_runs_completed_total",
			Help: "Completed runs partitioned by flow and result.",
		}, []string{"flow", "result"}),
		keywords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_keywords_total",
			Help: "Keywords processed partitioned by result.",
		}, []string{"result"}),
		sitesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_sites_visited_total",
			Help: "Candidate sites visited.",
		}),
		emailsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_emails_found_total",
			Help: "Addresses accepted during collection.",
		}),
		emailsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_emails_invalid_total",
			Help: "Addresses rejected by deliverability validation.",
		}),
		dispatchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_dispatch_results_total",
			Help: "Per-recipient dispatch outcomes.",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_progress_errors_total",
			Help: "Error events partitioned by flow.",
		}, []string{"flow"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsCompleted,
		s.keywords,
		s.sitesVisited,
		s.emailsFound,
		s.emailsInvalid,
		s.dispatchResults,
		s.errors,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Kind {
	case progress.KindSiteVisiting:
		s.sitesVisited.Inc()
	case progress.KindEmailFound:
		s.emailsFound.Inc()
	case progress.KindEmailInvalid:
		s.emailsInvalid.Inc()
	case progress.KindKeywordComplete:
		s.keywords.WithLabelValues("complete").Inc()
	case progress.KindSent:
		s.dispatchResults.WithLabelValues("sent").Inc()
	case progress.KindFailed:
		s.dispatchResults.WithLabelValues("failed").Inc()
	case progress.KindError:
		s.errors.WithLabelValues(flowLabel(evt.Flow)).Inc()
		if evt.Keyword != "" {
			s.keywords.WithLabelValues("error").Inc()
		} else {
			s.runsCompleted.WithLabelValues(flowLabel(evt.Flow), "error").Inc()
		}
	case progress.KindComplete:
		result := "success"
		if evt.Canceled {
			result = "canceled"
		}
		s.runsCompleted.WithLabelValues(flowLabel(evt.Flow), result).Inc()
	}
}

func flowLabel(flow progress.Flow) string {
	if flow == "" {
		return "unknown"
	}
	return string(flow)
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
