package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zoomiesmarket/zoomies/internal/cache"
	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/market"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
)

// Profile tabs.
const (
	TabActive       = "active"
	TabHistory      = "history"
	TabStats        = "stats"
	TabTransactions = "transactions"
)

// ActivePositions is the active tab, flagged when served from the local
// shadow because the backend could not be reached. Valuations is keyed by
// position id and covers positions whose market price is known.
type ActivePositions struct {
	Positions  []domain.Position    `json:"positions"`
	Valuations map[string]Valuation `json:"valuations,omitempty"`
	FromCache  bool                 `json:"from_cache"`
}

// Valuation is a position marked to its market's current YES price.
type Valuation struct {
	YesPrice float64         `json:"yes_price"`
	Value    decimal.Decimal `json:"value"`
	PnL      decimal.Decimal `json:"pnl"`
}

// PriceSource reports a market's current YES price.
type PriceSource interface {
	YesPrice(marketID string) (float64, bool)
}

// ProfileService serves the user profile tabs and keeps the position shadow
// in step with the server.
type ProfileService struct {
	api    *marketapi.Client
	cache  *cache.PositionCache
	logger *slog.Logger

	mu      sync.RWMutex
	history map[string][]domain.HistoryRow
	prices  PriceSource
}

// NewProfileService creates a ProfileService.
func NewProfileService(api *marketapi.Client, positions *cache.PositionCache, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		api:     api,
		cache:   positions,
		logger:  logger.With(slog.String("component", "profile_service")),
		history: make(map[string][]domain.HistoryRow),
	}
}

// UsePrices sets where the active tab reads market prices from.
func (s *ProfileService) UsePrices(p PriceSource) {
	s.mu.Lock()
	s.prices = p
	s.mu.Unlock()
}

// valuations marks each position whose market price is known.
func (s *ProfileService) valuations(positions []domain.Position) map[string]Valuation {
	s.mu.RLock()
	prices := s.prices
	s.mu.RUnlock()
	if prices == nil || len(positions) == 0 {
		return nil
	}
	out := make(map[string]Valuation, len(positions))
	for _, p := range positions {
		yes, ok := prices.YesPrice(p.MarketID)
		if !ok {
			continue
		}
		out[p.ID] = Valuation{
			YesPrice: yes,
			Value:    market.PositionValue(p, yes),
			PnL:      market.PositionPnL(p, yes),
		}
	}
	return out
}

// Active returns the user's open positions. A successful unfiltered fetch
// replaces the shadow; an unreachable backend falls back to it.
func (s *ProfileService) Active(ctx context.Context, userID string, f domain.UserFilter) (ActivePositions, error) {
	positions, err := s.api.ActivePositions(ctx, userID, f)
	if err == nil {
		if f == (domain.UserFilter{}) {
			if cerr := s.cache.Replace(ctx, userID, positions); cerr != nil {
				s.logger.WarnContext(ctx, "profile_service: shadow replace failed",
					slog.String("user_id", userID),
					slog.String("error", cerr.Error()),
				)
			}
		}
		return ActivePositions{Positions: positions, Valuations: s.valuations(positions)}, nil
	}

	if !errors.Is(err, domain.ErrUnavailable) {
		return ActivePositions{}, fmt.Errorf("profile_service: active positions: %w", err)
	}

	cached, cerr := s.cache.Positions(ctx, userID)
	if cerr != nil {
		return ActivePositions{}, fmt.Errorf("profile_service: active positions: %w", errors.Join(err, cerr))
	}
	s.logger.InfoContext(ctx, "profile_service: serving positions from shadow",
		slog.String("user_id", userID),
		slog.Int("count", len(cached)),
	)
	return ActivePositions{Positions: cached, Valuations: s.valuations(cached), FromCache: true}, nil
}

// SyncPositions refetches the unfiltered active tab so the shadow matches the
// server.
func (s *ProfileService) SyncPositions(ctx context.Context, userID string) error {
	res, err := s.Active(ctx, userID, domain.UserFilter{})
	if err != nil {
		return err
	}
	if res.FromCache {
		return fmt.Errorf("profile_service: sync positions: %w", domain.ErrUnavailable)
	}
	return nil
}

// History returns normalized bet-history rows and remembers the latest
// unfiltered result.
func (s *ProfileService) History(ctx context.Context, userID string, f domain.UserFilter) ([]domain.HistoryRow, error) {
	rows, err := s.api.History(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("profile_service: history: %w", err)
	}
	if f == (domain.UserFilter{}) {
		s.mu.Lock()
		s.history[userID] = rows
		s.mu.Unlock()
	}
	return rows, nil
}

// LastHistory returns the most recent unfiltered history fetched for userID.
func (s *ProfileService) LastHistory(userID string) []domain.HistoryRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.history[userID]
	out := make([]domain.HistoryRow, len(rows))
	copy(out, rows)
	return out
}

func (s *ProfileService) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	stats, err := s.api.Stats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("profile_service: stats: %w", err)
	}
	return stats, nil
}

func (s *ProfileService) Transactions(ctx context.Context, userID string, f domain.UserFilter) ([]domain.Transaction, error) {
	txs, err := s.api.Transactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("profile_service: transactions: %w", err)
	}
	return txs, nil
}

// Tab dispatches to the named profile tab.
func (s *ProfileService) Tab(ctx context.Context, userID, tab string, f domain.UserFilter) (any, error) {
	switch tab {
	case TabActive:
		return s.Active(ctx, userID, f)
	case TabHistory:
		return s.History(ctx, userID, f)
	case TabStats:
		return s.Stats(ctx, userID)
	case TabTransactions:
		return s.Transactions(ctx, userID, f)
	default:
		return nil, fmt.Errorf("profile_service: unknown tab %q: %w", tab, domain.ErrNotFound)
	}
}

// Reconcile refetches positions and history in parallel after a write.
func (s *ProfileService) Reconcile(ctx context.Context, userID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.SyncPositions(gctx, userID) })
	g.Go(func() error {
		_, err := s.History(gctx, userID, domain.UserFilter{})
		return err
	})
	return g.Wait()
}
