// Package sinks implements concrete progress consumers: structured logging,
// Prometheus counters, per-run live streams, and Pub/Sub run summaries. Each
// sink satisfies progress.Sink.
package sinks
