// Package events is the application-scoped publish/subscribe bus that carries
// market lifecycle and bet notifications between components: services
// publish, while the websocket hub, pollers and the Redis bridge subscribe.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

type subscription struct {
	ch    chan domain.Event
	names map[string]bool
}

func (s *subscription) wants(name string) bool {
	return len(s.names) == 0 || s.names[name]
}

// Bus fans published events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
	logger *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger.With(slog.String("component", "event_bus")),
	}
}

// Subscribe registers for the named events, or for every event when names is
// empty. The returned cancel func unregisters and closes the channel.
func (b *Bus) Subscribe(names ...string) (<-chan domain.Event, func()) {
	sub := &subscription{ch: make(chan domain.Event, DefaultBuffer)}
	if len(names) > 0 {
		sub.names = make(map[string]bool, len(names))
		for _, n := range names {
			sub.names[n] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers ev to every interested subscriber.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.wants(ev.Name) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.WarnContext(ctx, "dropping event for slow subscriber",
				slog.String("event", ev.Name),
			)
		}
	}
}

// Close closes every subscriber channel. Later Subscribe calls return a
// closed channel and later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

var _ domain.EventPublisher = (*Bus)(nil)
