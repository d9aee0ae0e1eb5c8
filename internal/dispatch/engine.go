// Package dispatch sends one message to a list of contacts, one at a time,
// with a fixed pause between sends.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/metrics"
	"github.com/JakeFAU/contact-harvester/internal/progress"
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Engine runs bulk dispatches over a mail transport.
type Engine struct {
	mailer      harvest.Mailer
	sendTimeout time.Duration
	sleep       Sleeper
	logger      *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSendTimeout bounds each send. Defaults to 60s.
func WithSendTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// WithSleeper replaces the pause between sends.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an Engine sending through mailer.
func New(mailer harvest.Mailer, opts ...Option) *Engine {
	e := &Engine{
		mailer:      mailer,
		sendTimeout: 60 * time.Second,
		sleep:       sleepContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("dispatch")
	return e
}

// Verify checks that the transport is reachable when it supports a probe.
func (e *Engine) Verify(ctx context.Context) error {
	v, ok := e.mailer.(harvest.Verifier)
	if !ok {
		return nil
	}
	if err := v.Verify(ctx); err != nil {
		return fmt.Errorf("%w: verify mail transport: %w", harvest.ErrInitialization, err)
	}
	return nil
}

// Dispatch sends msg to each contact in order and reports the outcome.
//
// ctx is checked before each contact; once it is done nothing more is sent
// and the result so far is returned with Canceled set. A send already in
// progress finishes under the send timeout. Failures are counted, never
// retried. delay separates consecutive sends and is not applied after the
// last one. Dispatch does not touch the contact store.
func (e *Engine) Dispatch(ctx context.Context, contacts []harvest.Contact, msg harvest.Message, delay time.Duration, emit progress.Emitter) harvest.DispatchResult {
	if emit == nil {
		emit = progress.Discard
	}
	result := harvest.DispatchResult{SentEmails: make([]string, 0, len(contacts))}

	for i, c := range contacts {
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
		email := c.Key()
		emit.Emit(progress.Event{Kind: progress.KindSending, Email: email, Index: i, Total: len(contacts)})

		if err := e.send(ctx, email, msg); err != nil {
			result.Failed++
			metrics.ObserveSend("failed")
			e.logger.Warn("send failed", zap.String("email", email), zap.Error(err))
			emit.Emit(progress.Event{Kind: progress.KindFailed, Email: email, Error: err.Error()})
		} else {
			result.Sent++
			result.SentEmails = append(result.SentEmails, email)
			metrics.ObserveSend("sent")
			contact := c
			emit.Emit(progress.Event{Kind: progress.KindSent, Email: email, Contact: &contact})
		}

		if i < len(contacts)-1 && delay > 0 {
			if err := e.sleep(ctx, delay); err != nil {
				result.Canceled = true
				break
			}
		}
	}

	e.logger.Info("dispatch finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Bool("canceled", result.Canceled),
	)
	emit.Emit(progress.Event{
		Kind:       progress.KindComplete,
		Sent:       result.Sent,
		Failed:     result.Failed,
		SentEmails: append([]string(nil), result.SentEmails...),
		Canceled:   result.Canceled,
	})
	return result
}

func (e *Engine) send(ctx context.Context, email string, msg harvest.Message) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.sendTimeout)
	defer cancel()
	if err := e.mailer.Send(ctx, email, msg); err != nil {
		return fmt.Errorf("%w: %s: %w", harvest.ErrDispatch, email, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatch pause interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
