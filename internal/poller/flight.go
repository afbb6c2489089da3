package poller

import (
	"sync"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// Flight is a keyed single-flight guard: at most one run per key at a time,
// with overlapping callers turned away instead of queued.
type Flight struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewFlight creates an empty Flight.
func NewFlight() *Flight {
	return &Flight{inflight: make(map[string]struct{})}
}

// Do runs fn unless a run for key is in flight, in which case it returns
// domain.ErrInFlight.
func (f *Flight) Do(key string, fn func() error) error {
	f.mu.Lock()
	if _, busy := f.inflight[key]; busy {
		f.mu.Unlock()
		return domain.ErrInFlight
	}
	f.inflight[key] = struct{}{}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.inflight, key)
		f.mu.Unlock()
	}()
	return fn()
}
