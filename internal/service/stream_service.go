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

// DetailStatus distinguishes "still loading" from "confirmed absent".
type DetailStatus string

const (
	DetailLoading  DetailStatus = "loading"
	DetailReady    DetailStatus = "ready"
	DetailNotFound DetailStatus = "not_found"
	DetailError    DetailStatus = "error"
)

// DefaultTrendWindow is how far back the odds chart reaches.
const DefaultTrendWindow = 60 * time.Minute

// StreamDetail is the single-stream view state.
type StreamDetail struct {
	Status       DetailStatus        `json:"status"`
	Stream       *domain.Stream      `json:"stream,omitempty"`
	ActiveMarket *domain.Market      `json:"active_market,omitempty"`
	Odds         market.Odds         `json:"odds"`
	Remaining    time.Duration       `json:"remaining_ms"`
	Trend        []domain.TrendPoint `json:"trend"`
	Error        string              `json:"error,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// StreamService drives the detail view for one focused stream. Every request
// it issues is registered so that Focus on another stream, or Close, aborts
// them; results belonging to a stream that is no longer focused are dropped.
type StreamService struct {
	api      *marketapi.Client
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
	reqs     *inflight
	flight   *poller.Flight

	mu       sync.RWMutex
	streamID string
	gen      uint64
	state    StreamDetail
	closed   bool
}

// NewStreamService creates a StreamService. window bounds the trend chart.
func NewStreamService(api *marketapi.Client, interval, window time.Duration, logger *slog.Logger) *StreamService {
	if interval <= 0 {
		interval = poller.DefaultDetailInterval
	}
	if window <= 0 {
		window = DefaultTrendWindow
	}
	return &StreamService{
		api:      api,
		interval: interval,
		window:   window,
		logger:   logger.With(slog.String("component", "stream_service")),
		reqs:     newInflight(),
		flight:   poller.NewFlight(),
		state:    StreamDetail{Status: DetailLoading},
	}
}

// Focus switches the view to streamID, aborting requests for the previous
// stream and resetting state to loading.
func (s *StreamService) Focus(streamID string) {
	s.mu.Lock()
	if s.streamID == streamID && !s.closed {
		s.mu.Unlock()
		return
	}
	s.streamID = streamID
	s.gen++
	s.closed = false
	s.state = StreamDetail{Status: DetailLoading}
	s.mu.Unlock()

	if n := s.reqs.abortAll(); n > 0 {
		s.logger.Debug("stream_service: aborted in-flight requests", slog.Int("count", n))
	}
}

// Close aborts every in-flight request. Late results are discarded.
func (s *StreamService) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
	s.reqs.abortAll()
}

// State returns the current view state.
func (s *StreamService) State() StreamDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Refresh reloads the focused stream. Overlapping refreshes of the same
// stream are skipped.
func (s *StreamService) Refresh(ctx context.Context) error {
	s.mu.RLock()
	id, gen, closed := s.streamID, s.gen, s.closed
	prevTrend := s.state.Trend
	s.mu.RUnlock()
	if id == "" || closed {
		return nil
	}

	err := s.flight.Do(id, func() error {
		rctx, done := s.reqs.start(ctx)
		defer done()

		detail, err := s.load(rctx, id, prevTrend, time.Now())
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// Aborted by Focus or Close.
			return nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return nil
		}
		if err != nil && detail.Status == DetailError && s.state.Status == DetailReady {
			// Keep showing stale data with the error attached.
			s.state.Error = detail.Error
			return err
		}
		s.state = detail
		return err
	})
	if errors.Is(err, domain.ErrInFlight) {
		return nil
	}
	return err
}

// Load builds the detail state for any stream without touching the focused
// view.
func (s *StreamService) Load(ctx context.Context, streamID string) (StreamDetail, error) {
	return s.load(ctx, streamID, nil, time.Now())
}

func (s *StreamService) load(ctx context.Context, id string, prevTrend []domain.TrendPoint, now time.Time) (StreamDetail, error) {
	var (
		stream  domain.Stream
		markets []domain.Market
		trend   []domain.TrendPoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stream, err = s.api.GetStream(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		markets, err = s.api.StreamMarkets(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		trend, err = s.api.StreamTrend(gctx, id, int(s.window/time.Minute))
		if err != nil && gctx.Err() == nil {
			// The chart is optional; a trend failure must not blank the view.
			s.logger.WarnContext(gctx, "stream_service: trend fetch failed",
				slog.String("stream_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return StreamDetail{Status: DetailNotFound, UpdatedAt: now}, nil
		}
		return StreamDetail{Status: DetailError, Error: classify(err, "").Message, UpdatedAt: now},
			fmt.Errorf("stream_service: load %s: %w", id, err)
	}

	if len(markets) > 0 || stream.Markets == nil {
		stream.Markets = markets
	}
	for i := range stream.Markets {
		if stream.Markets[i].StreamID == "" {
			stream.Markets[i].StreamID = id
		}
	}

	detail := StreamDetail{Status: DetailReady, Stream: &stream, UpdatedAt: now}
	points := market.MergeTrend(prevTrend, trend)
	if m := market.PickActiveMarket(&stream, now); m != nil {
		detail.ActiveMarket = m
		detail.Odds = market.ComputeOdds(m)
		detail.Remaining = market.Remaining(m.EndsAt, now)
		points = market.MergeTrend(points, []domain.TrendPoint{market.LivePoint(m, now)})
	} else {
		detail.Odds = market.ComputeOdds(nil)
	}
	detail.Trend = market.TrimTrend(points, now.Add(-s.window))
	return detail, nil
}

// Run polls the focused stream and refetches on market events for it until
// ctx is cancelled, then aborts whatever is still in flight.
func (s *StreamService) Run(ctx context.Context, events Subscriber) error {
	defer s.Close()

	p := poller.New("stream_detail", s.interval, s.Refresh, s.logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	if events != nil {
		g.Go(func() error {
			return follow(gctx, events, marketChangeEvents, func(ev domain.Event) {
				if s.concerns(ev) {
					_ = s.Refresh(gctx)
				}
			})
		})
	}
	return g.Wait()
}

// concerns reports whether ev touches the focused stream.
func (s *StreamService) concerns(ev domain.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ev.StreamID != "" {
		return ev.StreamID == s.streamID
	}
	if ev.MarketID == "" || s.state.Stream == nil {
		return true
	}
	return s.state.Stream.MarketByID(ev.MarketID) != nil
}
