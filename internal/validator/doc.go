// Package validator decides whether an address is deliverable: a format
// check followed by an MX lookup with per-attempt timeouts, bounded retries,
// and a per-domain verdict cache.
package validator
