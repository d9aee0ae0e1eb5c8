package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// pipelines stay agnostic about how events are buffered or delivered.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt Event) { f(evt) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Run stamps events with a run ID, flow, and timestamp before forwarding
// them.
type Run struct {
	id   uuid.UUID
	flow Flow
	next Emitter
	now  func() time.Time
}

// NewRun starts a run with a fresh ID that forwards to next.
func NewRun(next Emitter, flow Flow) *Run {
	if next == nil {
		next = Discard
	}
	return &Run{id: uuid.New(), flow: flow, next: next, now: time.Now}
}

// ID returns the run identifier.
func (r *Run) ID() uuid.UUID { return r.id }

// Emit stamps evt and forwards it.
func (r *Run) Emit(evt Event) {
	evt.RunID = UUIDToBytes(r.id)
	evt.Flow = r.flow
	if evt.TS.IsZero() {
		evt.TS = r.now().UTC()
	}
	r.next.Emit(evt)
}

// Tee forwards every event to each non-nil emitter in order.
func Tee(emitters ...Emitter) Emitter {
	out := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return EmitterFunc(func(evt Event) {
		for _, e := range out {
			e.Emit(evt)
		}
	})
}
