package sinks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/contact-harvester/internal/progress"
)

const defaultStreamBuffer = 1024

// StreamSink routes each run's events to the live subscribers of that run,
// e.g. an SSE response. Delivery never blocks the hub: a subscriber whose
// buffer is full misses the event. A subscriber's channel is closed after
// the run's terminal event.
type StreamSink struct {
	buffer int

	mu     sync.Mutex
	subs   map[[16]byte]map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ch      chan progress.Event
	dropped int
}

// NewStreamSink builds a sink whose subscribers buffer up to buffer events.
func NewStreamSink(buffer int) *StreamSink {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	return &StreamSink{buffer: buffer, subs: make(map[[16]byte]map[*subscriber]struct{})}
}

// Subscribe returns a channel of runID's events and a func that detaches it.
// Subscribe before the run starts emitting to observe every event.
func (s *StreamSink) Subscribe(runID uuid.UUID) (<-chan progress.Event, func()) {
	key := progress.UUIDToBytes(runID)
	sub := &subscriber{ch: make(chan progress.Event, s.buffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if s.subs[key] == nil {
		s.subs[key] = make(map[*subscriber]struct{})
	}
	s.subs[key][sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.detach(key, sub)
		})
	}
}

// Consume delivers events to matching subscribers.
func (s *StreamSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		subs := s.subs[evt.RunID]
		for sub := range subs {
			select {
			case sub.ch <- evt:
			default:
				sub.dropped++
			}
		}
		if evt.Terminal() {
			for sub := range subs {
				s.detach(evt.RunID, sub)
			}
		}
	}
	return nil
}

// Subscribers reports how many subscribers are attached to runID.
func (s *StreamSink) Subscribers(runID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[progress.UUIDToBytes(runID)])
}

// detach must be called with s.mu held.
func (s *StreamSink) detach(key [16]byte, sub *subscriber) {
	subs, ok := s.subs[key]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(s.subs, key)
	}
}

// Close detaches every subscriber.
func (s *StreamSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, subs := range s.subs {
		for sub := range subs {
			s.detach(key, sub)
		}
	}
	s.closed = true
	return nil
}
