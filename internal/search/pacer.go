package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Pacer spaces consecutive searches by a random pause in [Min, Max].
type Pacer struct {
	Min time.Duration
	Max time.Duration
	// Rand returns a value in [0,1); nil uses math/rand/v2.
	Rand func() float64
	// Sleep waits d or until ctx is done; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Next returns the next pause length.
func (p *Pacer) Next() time.Duration {
	if p == nil || p.Max <= 0 {
		return 0
	}
	span := p.Max - p.Min
	if span <= 0 {
		return p.Min
	}
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	return p.Min + time.Duration(r()*float64(span))
}

// Wait pauses for Next and returns ctx's error if it is canceled first.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	d := p.Next()
	if d <= 0 {
		return 0, nil
	}
	sleep := sleepContext
	if p.Sleep != nil {
		sleep = p.Sleep
	}
	if err := sleep(ctx, d); err != nil {
		return d, err
	}
	return d, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("search pause interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
