// Package api hosts the HTTP server, middleware, and handlers for operator
// access. Notable routes:
//   - GET /healthz for probes and GET /metrics for Prometheus scraping.
//   - GET /v1/contacts and DELETE /v1/contacts/pending for the contact log.
//   - GET /v1/collect/stream and POST /v1/send/stream, which run a collection
//     or dispatch and stream its progress as server-sent events.
//   - POST /v1/runs/{run_id}/cancel to stop an active run.
package api
