package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// inflight tracks the cancel funcs of outstanding requests so a view can
// abort all of them at once when it closes or changes subject.
type inflight struct {
	mu    sync.Mutex
	calls map[uuid.UUID]context.CancelFunc
}

func newInflight() *inflight {
	return &inflight{calls: make(map[uuid.UUID]context.CancelFunc)}
}

// start derives a cancellable context from parent and registers it. done must
// be called when the request finishes.
func (r *inflight) start(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New()

	r.mu.Lock()
	r.calls[id] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.calls, id)
		r.mu.Unlock()
		cancel()
	}
}

// abortAll cancels every registered request.
func (r *inflight) abortAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.calls)
	for id, cancel := range r.calls {
		cancel()
		delete(r.calls, id)
	}
	return n
}
