package domain

import (
	"context"
	"time"
)

// KVStore is the persistence seam behind the local position shadow. Get
// returns ErrNotFound when the key does not exist.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SignalBus provides cross-process pub/sub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// EventPublisher is the in-process side of the event bus used by services.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
}

// LockManager serializes read-modify-write cycles on a shared key across
// processes. The returned unlock func is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
