package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zoomiesmarket/zoomies/internal/cache"
	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/market"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
)

// Default wager limits in USD.
const (
	DefaultMinBet = 1.0
	DefaultMaxBet = 1000.0
)

// LoginPrompter starts the external login flow for an unauthenticated caller.
type LoginPrompter interface {
	PromptLogin(ctx context.Context)
}

// LoginPrompterFunc adapts a function to LoginPrompter.
type LoginPrompterFunc func(ctx context.Context)

func (f LoginPrompterFunc) PromptLogin(ctx context.Context) { f(ctx) }

// StreamLookup resolves a stream for the "current active market" fallback.
type StreamLookup interface {
	LookupStream(ctx context.Context, id string) (domain.Stream, error)
}

// Refresher is a view that can be told to refetch after a write.
type Refresher interface {
	Trigger(ctx context.Context) error
}

// NoticeSink receives user-facing notices tagged with the producing action.
type NoticeSink interface {
	Notify(ctx context.Context, action string, n domain.Notice) error
}

// BetRequest is one wager as entered by the user. Amount is number-like
// text; StreamID is used when MarketID is empty.
type BetRequest struct {
	MarketID string
	StreamID string
	Side     bool
	Amount   string
}

// BetLimits bounds a single wager.
type BetLimits struct {
	Min float64
	Max float64
}

// WagerService validates and submits wagers, keeps the position shadow
// current and announces new bets.
type WagerService struct {
	api        *marketapi.Client
	positions  *cache.PositionCache
	profile    *ProfileService
	streams    StreamLookup
	bus        domain.EventPublisher
	notices    NoticeSink
	prompter   LoginPrompter
	refreshers []Refresher
	limits     BetLimits
	logger     *slog.Logger
}

// WagerOption configures optional collaborators.
type WagerOption func(*WagerService)

// WithLoginPrompter sets the hook called for unauthenticated callers.
func WithLoginPrompter(p LoginPrompter) WagerOption {
	return func(s *WagerService) { s.prompter = p }
}

// WithRefreshers registers views that refetch after a successful bet.
func WithRefreshers(r ...Refresher) WagerOption {
	return func(s *WagerService) { s.refreshers = append(s.refreshers, r...) }
}

// WithNotices routes wager outcomes to a notice sink.
func WithNotices(n NoticeSink) WagerOption {
	return func(s *WagerService) { s.notices = n }
}

// NewWagerService creates a WagerService. Zero limits fall back to the
// defaults.
func NewWagerService(
	api *marketapi.Client,
	positions *cache.PositionCache,
	profile *ProfileService,
	streams StreamLookup,
	bus domain.EventPublisher,
	limits BetLimits,
	logger *slog.Logger,
	opts ...WagerOption,
) *WagerService {
	if limits.Min <= 0 {
		limits.Min = DefaultMinBet
	}
	if limits.Max <= 0 {
		limits.Max = DefaultMaxBet
	}
	s := &WagerService{
		api:       api,
		positions: positions,
		profile:   profile,
		streams:   streams,
		bus:       bus,
		limits:    limits,
		logger:    logger.With(slog.String("component", "wager_service")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ParseAmount reads a number-like amount such as "50", " 12.5 " or "$1,000".
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, domain.ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.ErrInvalidAmount
	}
	return v, nil
}

// validateAmount applies the amount checks in order and returns the parsed
// value.
func (s *WagerService) validateAmount(raw string) (float64, error) {
	amount, err := ParseAmount(raw)
	if err != nil || amount <= 0 {
		return 0, validationError(domain.ErrInvalidAmount, MsgInvalidAmount)
	}
	if amount < s.limits.Min {
		return 0, validationError(domain.ErrBelowMinimum, "Minimum bet is "+market.FormatUSD(s.limits.Min))
	}
	if amount > s.limits.Max {
		return 0, validationError(domain.ErrAboveMaximum, "Maximum bet is "+market.FormatUSD(s.limits.Max))
	}
	return amount, nil
}

// resolveMarket returns the explicit market id or the stream's current active
// market.
func (s *WagerService) resolveMarket(ctx context.Context, req BetRequest) (string, error) {
	if id := strings.TrimSpace(req.MarketID); id != "" {
		return id, nil
	}
	if req.StreamID == "" || s.streams == nil {
		return "", validationError(domain.ErrNoMarket, MsgNoMarket)
	}
	stream, err := s.streams.LookupStream(ctx, req.StreamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", validationError(domain.ErrNoMarket, MsgNoMarket)
		}
		return "", classify(err, "")
	}
	m := market.PickActiveMarket(&stream, time.Now())
	if m == nil {
		return "", validationError(domain.ErrNoMarket, MsgNoMarket)
	}
	return m.ID, nil
}

// PlaceBet validates and submits a wager. Failures are returned as
// *ActionError; no validation failure reaches the network, and a position the
// user already holds is rejected before any request.
func (s *WagerService) PlaceBet(ctx context.Context, who domain.Identity, req BetRequest) (domain.Position, error) {
	pos, err := s.placeBet(ctx, who, req)
	s.report(ctx, pos, err)
	return pos, err
}

// PlaceInlineBet is the grid variant: the target is the stream's current
// active market.
func (s *WagerService) PlaceInlineBet(ctx context.Context, who domain.Identity, streamID string, side bool, amount string) (domain.Position, error) {
	return s.PlaceBet(ctx, who, BetRequest{StreamID: streamID, Side: side, Amount: amount})
}

func (s *WagerService) placeBet(ctx context.Context, who domain.Identity, req BetRequest) (domain.Position, error) {
	if !who.Authenticated || who.UserID == "" {
		if s.prompter != nil {
			s.prompter.PromptLogin(ctx)
		}
		return domain.Position{}, validationError(domain.ErrNotAuthenticated, MsgLoginRequired)
	}

	amount, err := s.validateAmount(req.Amount)
	if err != nil {
		return domain.Position{}, err
	}

	marketID, err := s.resolveMarket(ctx, req)
	if err != nil {
		return domain.Position{}, err
	}

	held, err := s.positions.HasPosition(ctx, who.UserID, marketID)
	if err != nil {
		s.logger.WarnContext(ctx, "wager_service: shadow lookup failed",
			slog.String("error", err.Error()),
		)
	}
	if held {
		return domain.Position{}, validationError(domain.ErrAlreadyBet, MsgAlreadyBet)
	}

	pos, err := s.api.PlaceBet(ctx, marketID, marketapi.BetRequest{
		Side:   req.Side,
		Amount: amount,
		UserID: who.UserID,
	})
	if err != nil {
		ae := classify(err, MsgAlreadyBet)
		if ae.Kind == OutcomeConflict {
			s.resync(ctx, who.UserID)
		}
		s.logger.InfoContext(ctx, "wager_service: bet rejected",
			slog.String("market_id", marketID),
			slog.String("kind", string(ae.Kind)),
			slog.String("error", err.Error()),
		)
		return domain.Position{}, ae
	}

	pos = fillPosition(pos, who.UserID, marketID, req.Side, amount)
	if err := s.positions.Append(ctx, pos); err != nil {
		s.logger.WarnContext(ctx, "wager_service: shadow append failed",
			slog.String("error", err.Error()),
		)
	}

	s.bus.Publish(ctx, domain.NewEvent(domain.EventRecentBet, marketID, domain.RecentBet{
		UserID:   who.UserID,
		MarketID: marketID,
		Side:     domain.SideLabel(req.Side),
		Amount:   amount,
	}))

	s.logger.InfoContext(ctx, "wager_service: bet placed",
		slog.String("market_id", marketID),
		slog.String("side", domain.SideLabel(req.Side)),
		slog.Float64("amount", amount),
	)

	s.reconcile(ctx, who.UserID)
	return pos, nil
}

// fillPosition completes fields the server may omit so the optimistic entry
// is usable on its own.
func fillPosition(pos domain.Position, userID, marketID string, side bool, amount float64) domain.Position {
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	if pos.UserID == "" {
		pos.UserID = userID
	}
	if pos.MarketID == "" {
		pos.MarketID = marketID
	}
	if pos.Amount == 0 {
		pos.Amount = amount
		pos.Side = side
	}
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = time.Now().UTC()
	}
	return pos
}

// resync replaces the shadow with the server's positions after a conflict.
func (s *WagerService) resync(ctx context.Context, userID string) {
	if s.profile == nil {
		return
	}
	if err := s.profile.SyncPositions(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "wager_service: position resync failed",
			slog.String("error", err.Error()),
		)
	}
}

// reconcile refetches stream views, positions and history in parallel. Its
// failures are logged; the bet itself already succeeded.
func (s *WagerService) reconcile(ctx context.Context, userID string) {
	g, gctx := errgroup.WithContext(ctx)
	if s.profile != nil {
		g.Go(func() error { return s.profile.Reconcile(gctx, userID) })
	}
	for _, r := range s.refreshers {
		g.Go(func() error { return r.Trigger(gctx) })
	}
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "wager_service: reconcile failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *WagerService) report(ctx context.Context, pos domain.Position, err error) {
	if s.notices == nil {
		return
	}
	n := domain.Notice{
		Title:    "Bet placed",
		Message:  fmt.Sprintf("%s %s", domain.SideLabel(pos.Side), market.FormatUSD(pos.Amount)),
		Severity: domain.SeveritySuccess,
	}
	if err != nil {
		ae := classify(err, MsgAlreadyBet)
		n = domain.Notice{Title: "Bet failed", Message: ae.Message, Severity: domain.SeverityError}
		if ae.Kind == OutcomeValidation || ae.Kind == OutcomeConflict {
			n.Severity = domain.SeverityWarning
		}
	}
	_ = s.notices.Notify(ctx, "bet", n)
}

func insufficientMessage(required, current *float64) string {
	switch {
	case required != nil && current != nil:
		return fmt.Sprintf("Insufficient balance: need %s, have %s", market.FormatUSD(*required), market.FormatUSD(*current))
	case current != nil:
		return "Insufficient balance: you have " + market.FormatUSD(*current)
	default:
		return "Insufficient balance"
	}
}
