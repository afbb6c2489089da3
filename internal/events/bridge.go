package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// DefaultChannel is the SignalBus channel carrying bridged events.
const DefaultChannel = "zoomies:events"

// Bridge mirrors a local Bus onto a cross-process SignalBus so several
// client processes observe each other's admin actions and bets. Locally
// published events are forwarded with this process's origin stamped on them.
// Remote events are republished locally and never forwarded again.
type Bridge struct {
	bus     *Bus
	signal  domain.SignalBus
	channel string
	origin  string
	logger  *slog.Logger
}

// NewBridge creates a Bridge. An empty channel uses DefaultChannel.
func NewBridge(bus *Bus, signal domain.SignalBus, channel string, logger *slog.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{
		bus:     bus,
		signal:  signal,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.With(slog.String("component", "event_bridge")),
	}
}

// Origin returns the identifier stamped on events this process forwards.
func (br *Bridge) Origin() string {
	return br.origin
}

// Run forwards in both directions until ctx is cancelled.
func (br *Bridge) Run(ctx context.Context) error {
	remote, err := br.signal.Subscribe(ctx, br.channel)
	if err != nil {
		return err
	}
	local, cancel := br.bus.Subscribe()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return br.outbound(gctx, local) })
	g.Go(func() error { return br.inbound(gctx, remote) })
	return g.Wait()
}

func (br *Bridge) outbound(ctx context.Context, local <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-local:
			if !ok {
				return nil
			}
			if ev.Origin != "" {
				continue
			}
			ev.Origin = br.origin
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := br.signal.Publish(ctx, br.channel, data); err != nil {
				br.logger.WarnContext(ctx, "forward event failed",
					slog.String("event", ev.Name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (br *Bridge) inbound(ctx context.Context, remote <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-remote:
			if !ok {
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				br.logger.DebugContext(ctx, "discarding malformed bridged event",
					slog.String("error", err.Error()),
				)
				continue
			}
			if ev.Origin == "" || ev.Origin == br.origin {
				continue
			}
			br.bus.Publish(ctx, ev)
		}
	}
}
