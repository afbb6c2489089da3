package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/market"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
	"github.com/zoomiesmarket/zoomies/internal/poller"
)

// StreamCard is one tile of the stream grid.
type StreamCard struct {
	Stream         domain.Stream  `json:"stream"`
	ActiveMarket   *domain.Market `json:"active_market,omitempty"`
	Odds           market.Odds    `json:"odds"`
	Remaining      time.Duration  `json:"remaining_ms"`
	RemainingLabel string         `json:"remaining"`
	VolumeLabel    string         `json:"volume"`
	HasPosition    bool           `json:"has_position"`
}

// FeedService keeps the stream-grid snapshot: every stream with its markets,
// plus the watching user's positions. It refreshes on a fixed cadence, on
// countdown expiry, and when another component announces a market change.
type FeedService struct {
	api      *marketapi.Client
	profile  *ProfileService
	bus      domain.EventPublisher
	interval time.Duration
	userID   string
	logger   *slog.Logger

	countdown *market.Countdown
	poll      *poller.Poller

	mu        sync.RWMutex
	streams   []domain.Stream
	positions map[string]bool // market id -> watching user holds a position
	fetchedAt time.Time
}

// NewFeedService creates a FeedService. userID may be empty, in which case no
// positions are polled.
func NewFeedService(
	api *marketapi.Client,
	profile *ProfileService,
	bus domain.EventPublisher,
	interval time.Duration,
	userID string,
	logger *slog.Logger,
) *FeedService {
	if interval <= 0 {
		interval = poller.DefaultGridInterval
	}
	f := &FeedService{
		api:       api,
		profile:   profile,
		bus:       bus,
		interval:  interval,
		userID:    userID,
		logger:    logger.With(slog.String("component", "feed_service")),
		countdown: market.NewCountdown(),
		positions: make(map[string]bool),
	}
	f.poll = poller.New("feed", interval, f.Refresh, logger)
	return f
}

// Refresh fetches streams and, when a user is set, their active positions in
// parallel, then swaps the snapshot and announces it.
func (f *FeedService) Refresh(ctx context.Context) error {
	var (
		streams   []domain.Stream
		positions []domain.Position
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		streams, err = f.api.ListStreams(gctx)
		return err
	})
	if f.userID != "" && f.profile != nil {
		g.Go(func() error {
			res, err := f.profile.Active(gctx, f.userID, domain.UserFilter{})
			if err != nil {
				// Positions are decoration on the grid; never fail the feed.
				f.logger.WarnContext(gctx, "feed_service: positions fetch failed",
					slog.String("error", err.Error()),
				)
				return nil
			}
			positions = res.Positions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("feed_service: refresh: %w", err)
	}

	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		held[p.MarketID] = true
	}

	f.mu.Lock()
	f.streams = streams
	if f.userID != "" {
		f.positions = held
	}
	f.fetchedAt = time.Now()
	f.mu.Unlock()

	f.bus.Publish(ctx, domain.NewEvent(domain.EventStreams, "", map[string]int{"count": len(streams)}))
	return nil
}

// Cards builds the sorted grid from the current snapshot.
func (f *FeedService) Cards(key market.SortKey, now time.Time) []StreamCard {
	f.mu.RLock()
	streams := market.SortStreams(f.streams, key, now)
	held := f.positions
	f.mu.RUnlock()

	cards := make([]StreamCard, 0, len(streams))
	for i := range streams {
		s := &streams[i]
		card := StreamCard{Stream: *s}
		if m := market.PickActiveMarket(s, now); m != nil {
			mc := *m
			card.ActiveMarket = &mc
			card.Odds = market.ComputeOdds(&mc)
			card.Remaining = market.Remaining(mc.EndsAt, now)
			card.RemainingLabel = market.FormatRemaining(card.Remaining)
			card.VolumeLabel = market.FormatUSD(card.Odds.TotalVolume)
			card.HasPosition = held[mc.ID]
		} else {
			card.Odds = market.ComputeOdds(nil)
		}
		cards = append(cards, card)
	}
	return cards
}

// YesPrice returns the YES price of a market in the snapshot.
func (f *FeedService) YesPrice(marketID string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := range f.streams {
		for j := range f.streams[i].Markets {
			if m := &f.streams[i].Markets[j]; m.ID == marketID {
				return market.YesPrice(m), true
			}
		}
	}
	return 0, false
}

// FetchedAt reports when the snapshot was last replaced.
func (f *FeedService) FetchedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetchedAt
}

// LookupStream returns a stream from the snapshot, or from the backend when
// the snapshot does not know it.
func (f *FeedService) LookupStream(ctx context.Context, id string) (domain.Stream, error) {
	f.mu.RLock()
	for _, s := range f.streams {
		if s.ID == id {
			f.mu.RUnlock()
			return s, nil
		}
	}
	f.mu.RUnlock()

	s, err := f.api.GetStream(ctx, id)
	if err != nil {
		return domain.Stream{}, fmt.Errorf("feed_service: lookup stream %s: %w", id, err)
	}
	return s, nil
}

// Trigger requests an immediate refresh unless one is already running.
func (f *FeedService) Trigger(ctx context.Context) error {
	err := f.poll.Trigger(ctx)
	if errors.Is(err, domain.ErrInFlight) {
		return nil
	}
	return err
}

// Beat is the heartbeat hook: it refetches once when any active market's
// countdown reaches zero.
func (f *FeedService) Beat(ctx context.Context, now time.Time) {
	f.mu.RLock()
	ends := make(map[string]time.Time)
	for i := range f.streams {
		for _, m := range f.streams[i].Markets {
			if m.Status == domain.MarketStatusActive && m.EndsAt != nil {
				ends[m.ID] = *m.EndsAt
			}
		}
	}
	f.mu.RUnlock()

	if expired := f.countdown.Tick(now, ends); len(expired) > 0 {
		f.logger.DebugContext(ctx, "feed_service: countdown expired",
			slog.Any("markets", expired),
		)
		go func() { _ = f.Trigger(ctx) }()
	}
}

// Run polls, beats and reacts to market events until ctx is cancelled.
func (f *FeedService) Run(ctx context.Context, events Subscriber, heartbeat time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.poll.Run(gctx) })
	g.Go(func() error {
		return poller.Heartbeat(gctx, heartbeat, func(now time.Time) { f.Beat(gctx, now) })
	})
	if events != nil {
		g.Go(func() error {
			return follow(gctx, events, marketChangeEvents, func(domain.Event) { _ = f.Trigger(gctx) })
		})
	}
	return g.Wait()
}
