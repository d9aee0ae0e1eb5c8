package api

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Runs tracks the cancel funcs of active runs.
type Runs struct {
	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// NewRuns returns an empty registry.
func NewRuns() *Runs {
	return &Runs{active: make(map[uuid.UUID]context.CancelFunc)}
}

// Start derives a cancelable context for id. done deregisters the run and
// releases the context.
func (r *Runs) Start(parent context.Context, id uuid.UUID) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.active[id] = cancel
	r.mu.Unlock()
	return ctx, func() {
		r.mu.Lock()
		delete(r.active, id)
		r.mu.Unlock()
		cancel()
	}
}

// Cancel stops id and reports whether it was active.
func (r *Runs) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active lists the IDs of running runs.
func (r *Runs) Active() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
