package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/cache"
	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/market"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
	"github.com/zoomiesmarket/zoomies/internal/poller"
)

// MinCancelReason is the shortest accepted cancellation reason, after
// trimming.
const MinCancelReason = 5

// Admin actions, also used as notice and audit tags.
const (
	ActionResolve      = "resolve"
	ActionCancel       = "cancel"
	ActionRenew        = "renew"
	ActionCreateStream = "create_stream"
	ActionDeleteStream = "delete_stream"
	ActionCreateMarket = "create_market"
)

// AdminAction describes what is about to happen, for the confirmation step.
type AdminAction struct {
	Kind     string
	MarketID string
	StreamID string
	Summary  string
}

// Confirmer gates every admin action. Returning false aborts it before any
// request is sent.
type Confirmer interface {
	Confirm(ctx context.Context, a AdminAction) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, a AdminAction) bool

func (f ConfirmFunc) Confirm(ctx context.Context, a AdminAction) bool { return f(ctx, a) }

// Confirmed is a Confirmer that always agrees, for callers whose request
// already carries the confirmation.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, AdminAction) bool { return true })

// AdminService issues resolve, cancel and renew for markets, manages streams
// and markets, and keeps the dashboard's market list. Each action is
// confirmed first and reported as a notice whatever its outcome.
type AdminService struct {
	api       *marketapi.Client
	positions *cache.PositionCache
	bus       domain.EventPublisher
	notices   NoticeSink
	audit     domain.AuditStore
	interval  time.Duration
	logger    *slog.Logger
	poll      *poller.Poller

	mu      sync.RWMutex
	markets []domain.Market
	streams map[string]string // stream id -> name
}

// NewAdminService creates an AdminService. notices and audit may be nil.
func NewAdminService(
	api *marketapi.Client,
	positions *cache.PositionCache,
	bus domain.EventPublisher,
	notices NoticeSink,
	audit domain.AuditStore,
	interval time.Duration,
	logger *slog.Logger,
) *AdminService {
	if interval <= 0 {
		interval = poller.DefaultAdminInterval
	}
	s := &AdminService{
		api:       api,
		positions: positions,
		bus:       bus,
		notices:   notices,
		audit:     audit,
		interval:  interval,
		logger:    logger.With(slog.String("component", "admin_service")),
		streams:   make(map[string]string),
	}
	s.poll = poller.New("admin", interval, s.Refresh, logger)
	return s
}

// Refresh reloads every stream's markets into the dashboard list.
func (s *AdminService) Refresh(ctx context.Context) error {
	streams, err := s.api.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("admin_service: refresh: %w", err)
	}
	var markets []domain.Market
	names := make(map[string]string, len(streams))
	for _, st := range streams {
		names[st.ID] = st.Name
		markets = append(markets, st.Markets...)
	}

	s.mu.Lock()
	s.markets = markets
	s.streams = names
	s.mu.Unlock()
	return nil
}

// Trigger refreshes now unless a refresh is running.
func (s *AdminService) Trigger(ctx context.Context) error {
	if err := s.poll.Trigger(ctx); err != nil && !errors.Is(err, domain.ErrInFlight) {
		return err
	}
	return nil
}

// Run polls the dashboard list until ctx is cancelled.
func (s *AdminService) Run(ctx context.Context) error {
	return s.poll.Run(ctx)
}

// Markets returns dashboard markets with one of the given statuses, or all of
// them when none are given.
func (s *AdminService) Markets(statuses ...domain.MarketStatus) []domain.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(statuses) == 0 {
		out := make([]domain.Market, len(s.markets))
		copy(out, s.markets)
		return out
	}
	return market.FilterByStatus(s.markets, statuses...)
}

// Resolve declares a market's outcome.
func (s *AdminService) Resolve(ctx context.Context, who domain.Identity, marketID string, outcome bool, notes string, c Confirmer) (domain.Notice, error) {
	action := AdminAction{
		Kind:     ActionResolve,
		MarketID: marketID,
		Summary:  fmt.Sprintf("Resolve market as %s", domain.SideLabel(outcome)),
	}
	return s.run(ctx, who, action, c, func() (domain.Notice, error) {
		if err := s.api.ResolveMarket(ctx, marketID, outcome, strings.TrimSpace(notes)); err != nil {
			return domain.Notice{}, err
		}
		s.evict(ctx, marketID)
		s.settle(ctx, marketID, domain.MarketStatusResolved)
		s.bus.Publish(ctx, s.event(domain.EventMarketResolved, marketID, map[string]any{
			"outcome": outcome,
			"notes":   strings.TrimSpace(notes),
		}))
		s.record(ctx, who, ActionResolve, marketID, map[string]any{"outcome": domain.SideLabel(outcome), "notes": notes})
		return domain.Notice{
			Title:    "Market resolved",
			Message:  "Outcome: " + domain.SideLabel(outcome),
			Severity: domain.SeveritySuccess,
		}, nil
	})
}

// Cancel cancels a market and refunds its positions. reason must be at least
// MinCancelReason characters after trimming; a shorter one is rejected
// without a request.
func (s *AdminService) Cancel(ctx context.Context, who domain.Identity, marketID, reason string, c Confirmer) (domain.RefundSummary, domain.Notice, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < MinCancelReason {
		err := validationError(domain.ErrReasonTooShort, MsgReasonTooShort)
		n := domain.Notice{Title: "Cancel failed", Message: err.Message, Severity: domain.SeverityWarning}
		s.notify(ctx, ActionCancel, n)
		return domain.RefundSummary{}, n, err
	}

	var summary domain.RefundSummary
	action := AdminAction{Kind: ActionCancel, MarketID: marketID, Summary: "Cancel market and refund all positions"}
	n, err := s.run(ctx, who, action, c, func() (domain.Notice, error) {
		var err error
		summary, err = s.api.CancelMarket(ctx, marketID, reason)
		if err != nil {
			return domain.Notice{}, err
		}
		s.evict(ctx, marketID)
		s.settle(ctx, marketID, domain.MarketStatusCancelled)
		s.bus.Publish(ctx, s.event(domain.EventMarketCancelled, marketID, map[string]any{
			"reason":  reason,
			"summary": summary,
		}))
		s.record(ctx, who, ActionCancel, marketID, map[string]any{"reason": reason, "summary": summary})
		return domain.Notice{
			Title: "Market cancelled",
			Message: fmt.Sprintf("Refunded %s to %d users (%d positions)",
				market.FormatUSD(summary.TotalRefunded), summary.UsersRefunded, summary.PositionsRefunded),
			Severity: domain.SeveritySuccess,
		}, nil
	})
	return summary, n, err
}

// Renew extends a market by additionalMinutes and optionally replaces its
// question. The dashboard list is patched optimistically before the
// authoritative refetch.
func (s *AdminService) Renew(ctx context.Context, who domain.Identity, marketID string, additionalMinutes int, newQuestion string, c Confirmer) (domain.Market, domain.Notice, error) {
	newQuestion = strings.TrimSpace(newQuestion)
	if additionalMinutes <= 0 {
		err := validationError(domain.ErrInvalidRenewal, "Additional minutes must be greater than zero")
		n := domain.Notice{Title: "Renew failed", Message: err.Message, Severity: domain.SeverityWarning}
		s.notify(ctx, ActionRenew, n)
		return domain.Market{}, n, err
	}

	var renewed domain.Market
	action := AdminAction{
		Kind:     ActionRenew,
		MarketID: marketID,
		Summary:  fmt.Sprintf("Extend market by %d minutes", additionalMinutes),
	}
	n, err := s.run(ctx, who, action, c, func() (domain.Notice, error) {
		var err error
		renewed, err = s.api.RenewMarket(ctx, marketID, additionalMinutes, newQuestion)
		if err != nil {
			return domain.Notice{}, err
		}
		renewed = s.patchRenewed(marketID, renewed, additionalMinutes, newQuestion, time.Now())
		s.bus.Publish(ctx, s.event(domain.EventMarketRenewed, marketID, renewed))
		s.record(ctx, who, ActionRenew, marketID, map[string]any{
			"additional_minutes": additionalMinutes,
			"new_question":       newQuestion,
		})
		go func() { _ = s.Trigger(context.WithoutCancel(ctx)) }()
		return domain.Notice{
			Title:    "Market renewed",
			Message:  fmt.Sprintf("Extended by %d minutes", additionalMinutes),
			Severity: domain.SeveritySuccess,
		}, nil
	})
	return renewed, n, err
}

// patchRenewed applies the renewal to the dashboard list: status active, the
// new end time and question. Fields the server did not echo are derived
// locally.
func (s *AdminService) patchRenewed(marketID string, renewed domain.Market, minutes int, question string, now time.Time) domain.Market {
	s.mu.Lock()
	defer s.mu.Unlock()

	var local *domain.Market
	for i := range s.markets {
		if s.markets[i].ID == marketID {
			local = &s.markets[i]
			break
		}
	}

	if renewed.ID == "" {
		if local != nil {
			renewed = *local
		} else {
			renewed.ID = marketID
		}
	}
	if renewed.EndsAt == nil {
		base := now
		if local != nil && local.EndsAt != nil && local.EndsAt.After(now) {
			base = *local.EndsAt
		}
		end := base.Add(time.Duration(minutes) * time.Minute)
		renewed.EndsAt = &end
	}
	renewed.Status = domain.MarketStatusActive
	if question != "" {
		renewed.Question = question
	}

	if local != nil {
		if renewed.StreamID == "" {
			renewed.StreamID = local.StreamID
		}
		*local = renewed
	}
	return renewed
}

// settle marks a market terminal in the dashboard list and refetches it in
// the background.
func (s *AdminService) settle(ctx context.Context, marketID string, status domain.MarketStatus) {
	s.mu.Lock()
	for i := range s.markets {
		if s.markets[i].ID == marketID {
			s.markets[i].Status = status
			break
		}
	}
	s.mu.Unlock()
	go func() { _ = s.Trigger(context.WithoutCancel(ctx)) }()
}

// CreateStream creates a stream.
func (s *AdminService) CreateStream(ctx context.Context, who domain.Identity, req marketapi.CreateStreamRequest, c Confirmer) (domain.Stream, domain.Notice, error) {
	var created domain.Stream
	action := AdminAction{Kind: ActionCreateStream, Summary: "Create stream " + req.Name}
	n, err := s.run(ctx, who, action, c, func() (domain.Notice, error) {
		var err error
		created, err = s.api.CreateStream(ctx, req)
		if err != nil {
			return domain.Notice{}, err
		}
		s.record(ctx, who, ActionCreateStream, "", map[string]any{"stream_id": created.ID, "name": req.Name})
		return domain.Notice{Title: "Stream created", Message: req.Name, Severity: domain.SeveritySuccess}, nil
	})
	return created, n, err
}

// DeleteStream removes a stream.
func (s *AdminService) DeleteStream(ctx context.Context, who domain.Identity, streamID string, c Confirmer) (domain.Notice, error) {
	action := AdminAction{Kind: ActionDeleteStream, StreamID: streamID, Summary: "Delete stream " + s.streamName(streamID)}
	return s.run(ctx, who, action, c, func() (domain.Notice, error) {
		if err := s.api.DeleteStream(ctx, streamID); err != nil {
			return domain.Notice{}, err
		}
		s.record(ctx, who, ActionDeleteStream, "", map[string]any{"stream_id": streamID})
		return domain.Notice{Title: "Stream deleted", Message: s.streamName(streamID), Severity: domain.SeveritySuccess}, nil
	})
}

// CreateMarket opens a market on a stream.
func (s *AdminService) CreateMarket(ctx context.Context, who domain.Identity, req marketapi.CreateMarketRequest, c Confirmer) (domain.Market, domain.Notice, error) {
	var created domain.Market
	if strings.TrimSpace(req.Question) == "" || req.DurationMinutes <= 0 {
		err := validationError(domain.ErrInvalidMarket, "A market needs a question and a positive duration")
		n := domain.Notice{Title: "Create market failed", Message: err.Message, Severity: domain.SeverityWarning}
		s.notify(ctx, ActionCreateMarket, n)
		return created, n, err
	}
	action := AdminAction{Kind: ActionCreateMarket, StreamID: req.StreamID, Summary: req.Question}
	n, err := s.run(ctx, who, action, c, func() (domain.Notice, error) {
		var err error
		created, err = s.api.CreateMarket(ctx, req)
		if err != nil {
			return domain.Notice{}, err
		}
		s.record(ctx, who, ActionCreateMarket, created.ID, map[string]any{"stream_id": req.StreamID, "question": req.Question})
		return domain.Notice{Title: "Market created", Message: req.Question, Severity: domain.SeveritySuccess}, nil
	})
	return created, n, err
}

// Audit lists recorded admin actions, newest first.
func (s *AdminService) Audit(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	entries, err := s.audit.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("admin_service: audit: %w", err)
	}
	return entries, nil
}

// run is the common confirm, execute and report path.
func (s *AdminService) run(ctx context.Context, who domain.Identity, a AdminAction, c Confirmer, do func() (domain.Notice, error)) (domain.Notice, error) {
	title := failureTitle(a.Kind)
	if !who.Authenticated || !who.Admin {
		err := &ActionError{Kind: OutcomeValidation, Message: "Admin access required", Err: domain.ErrUnauthorized}
		n := domain.Notice{Title: title, Message: err.Message, Severity: domain.SeverityError}
		s.notify(ctx, a.Kind, n)
		return n, err
	}
	if c == nil || !c.Confirm(ctx, a) {
		err := &ActionError{Kind: OutcomeValidation, Message: "Action not confirmed", Err: domain.ErrNotConfirmed}
		return domain.Notice{Title: title, Message: err.Message, Severity: domain.SeverityInfo}, err
	}

	n, err := do()
	if err != nil {
		ae := classify(err, "")
		n = domain.Notice{Title: title, Message: ae.Message, Severity: domain.SeverityError}
		s.logger.WarnContext(ctx, "admin_service: action failed",
			slog.String("action", a.Kind),
			slog.String("market_id", a.MarketID),
			slog.String("error", err.Error()),
		)
		s.notify(ctx, a.Kind, n)
		return n, ae
	}

	s.logger.InfoContext(ctx, "admin_service: action applied",
		slog.String("action", a.Kind),
		slog.String("market_id", a.MarketID),
		slog.String("actor", who.UserID),
	)
	s.notify(ctx, a.Kind, n)
	return n, nil
}

func failureTitle(kind string) string {
	switch kind {
	case ActionResolve:
		return "Resolve failed"
	case ActionCancel:
		return "Cancel failed"
	case ActionRenew:
		return "Renew failed"
	default:
		return "Admin action failed"
	}
}

func (s *AdminService) event(name, marketID string, payload any) domain.Event {
	ev := domain.NewEvent(name, marketID, payload)
	s.mu.RLock()
	for _, m := range s.markets {
		if m.ID == marketID {
			ev.StreamID = m.StreamID
			break
		}
	}
	s.mu.RUnlock()
	return ev
}

func (s *AdminService) streamName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name := s.streams[id]; name != "" {
		return name
	}
	return id
}

// evict drops settled positions from the shadow.
func (s *AdminService) evict(ctx context.Context, marketID string) {
	if s.positions == nil {
		return
	}
	if err := s.positions.EvictMarket(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "admin_service: shadow evict failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AdminService) notify(ctx context.Context, action string, n domain.Notice) {
	if s.notices == nil {
		return
	}
	if err := s.notices.Notify(ctx, action, n); err != nil {
		s.logger.DebugContext(ctx, "admin_service: notice delivery incomplete",
			slog.String("error", err.Error()),
		)
	}
}

func (s *AdminService) record(ctx context.Context, who domain.Identity, action, marketID string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{Action: action, MarketID: marketID, Actor: who.UserID, Detail: detail, CreatedAt: time.Now().UTC()}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "admin_service: audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
