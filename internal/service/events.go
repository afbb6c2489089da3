package service

import (
	"context"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// Subscriber is the listening side of the application event bus.
type Subscriber interface {
	Subscribe(names ...string) (<-chan domain.Event, func())
}

// marketChangeEvents make any open view refetch.
var marketChangeEvents = []string{
	domain.EventMarketResolved,
	domain.EventMarketCancelled,
	domain.EventMarketRenewed,
	domain.EventRecentBet,
}

// follow calls fn for each named event until ctx ends or the bus closes.
func follow(ctx context.Context, sub Subscriber, names []string, fn func(domain.Event)) error {
	ch, cancel := sub.Subscribe(names...)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			fn(ev)
		}
	}
}
