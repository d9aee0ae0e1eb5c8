package validator

import (
	"context"
	"errors"
	"net"
	"time"
)

// BackoffPolicy decides whether a failed lookup is retried and how long to
// wait first. Attempts are zero-based.
type BackoffPolicy struct {
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewBackoffPolicy allows up to retries additional attempts, waiting
// baseDelay*2^attempt between them, capped at maxDelay when positive.
func NewBackoffPolicy(retries int, baseDelay, maxDelay time.Duration) *BackoffPolicy {
	if retries < 0 {
		retries = 0
	}
	return &BackoffPolicy{retries: retries, baseDelay: baseDelay, maxDelay: maxDelay}
}

// ShouldRetry reports whether attempt (the one that just failed with err)
// may be followed by another.
func (p *BackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.retries {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}
	return true
}

// Backoff returns the wait before the attempt following attempt.
func (p *BackoffPolicy) Backoff(attempt int) time.Duration {
	delay := p.baseDelay << attempt
	if p.maxDelay > 0 && delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}

// pauser waits between attempts; swapped out in tests.
type pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
