package marketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// BetRequest is the wager payload.
type BetRequest struct {
	Side   bool    `json:"side"`
	Amount float64 `json:"amount"`
	UserID string  `json:"userId"`
}

// PlaceBet submits a wager and returns the created position. A 409 unwraps
// to domain.ErrConflict; an insufficient-balance rejection unwraps to
// domain.ErrInsufficientFunds and carries the amounts on the *APIError.
// POST /api/markets/:id/bet
func (c *Client) PlaceBet(ctx context.Context, marketID string, req BetRequest) (domain.Position, error) {
	body, err := c.doPost(ctx, marketPath(marketID, "bet"), req)
	if err != nil {
		return domain.Position{}, fmt.Errorf("marketapi: place bet on %s: %w", marketID, err)
	}

	p, err := decodeObject[apiPosition](body, "position")
	if err != nil {
		return domain.Position{}, fmt.Errorf("marketapi: decode position: %w", err)
	}
	pos := p.toDomain()
	if pos.MarketID == "" {
		pos.MarketID = marketID
	}
	if pos.UserID == "" {
		pos.UserID = req.UserID
	}
	return pos, nil
}

// ResolveMarket declares the outcome of a market.
// POST /api/markets/:id/resolve
func (c *Client) ResolveMarket(ctx context.Context, marketID string, outcome bool, notes string) error {
	payload := map[string]any{
		"outcome":         outcome,
		"resolutionNotes": notes,
	}
	if _, err := c.doPost(ctx, marketPath(marketID, "resolve"), payload); err != nil {
		return fmt.Errorf("marketapi: resolve market %s: %w", marketID, err)
	}
	return nil
}

// CancelMarket cancels a market and returns the refund summary.
// POST /api/markets/:id/cancel
func (c *Client) CancelMarket(ctx context.Context, marketID, reason string) (domain.RefundSummary, error) {
	body, err := c.doPost(ctx, marketPath(marketID, "cancel"), map[string]string{"reason": reason})
	if err != nil {
		return domain.RefundSummary{}, fmt.Errorf("marketapi: cancel market %s: %w", marketID, err)
	}

	var resp struct {
		Summary *apiRefundSummary `json:"summary"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.RefundSummary{}, fmt.Errorf("marketapi: decode refund summary: %w", err)
		}
	}
	if resp.Summary == nil {
		return domain.RefundSummary{}, nil
	}
	return resp.Summary.toDomain(), nil
}

// RenewMarket extends a market's end time by additionalMinutes and optionally
// replaces its question. It returns the updated market.
// POST /api/markets/:id/renew
func (c *Client) RenewMarket(ctx context.Context, marketID string, additionalMinutes int, newQuestion string) (domain.Market, error) {
	payload := renewRequest{AdditionalMinutes: additionalMinutes}
	if newQuestion != "" {
		payload.NewQuestion = &newQuestion
	}

	body, err := c.doPost(ctx, marketPath(marketID, "renew"), payload)
	if err != nil {
		return domain.Market{}, fmt.Errorf("marketapi: renew market %s: %w", marketID, err)
	}

	m, err := decodeObject[apiMarket](body, "market")
	if err != nil {
		return domain.Market{}, fmt.Errorf("marketapi: decode market: %w", err)
	}
	return m.toDomain(), nil
}

// renewRequest always carries new_question; null keeps the current question.
type renewRequest struct {
	AdditionalMinutes int     `json:"additional_minutes"`
	NewQuestion       *string `json:"new_question"`
}

// CreateMarketRequest is the admin payload for a new market.
type CreateMarketRequest struct {
	StreamID        string `json:"stream_id"`
	Question        string `json:"question"`
	DurationMinutes int    `json:"duration_minutes"`
	StartsAt        string `json:"starts_at,omitempty"`
}

// CreateMarket creates a market on a stream.
// POST /api/markets
func (c *Client) CreateMarket(ctx context.Context, req CreateMarketRequest) (domain.Market, error) {
	body, err := c.doPost(ctx, "/api/markets", req)
	if err != nil {
		return domain.Market{}, fmt.Errorf("marketapi: create market: %w", err)
	}
	m, err := decodeObject[apiMarket](body, "market")
	if err != nil {
		return domain.Market{}, fmt.Errorf("marketapi: decode market: %w", err)
	}
	return m.toDomain(), nil
}

func marketPath(marketID, action string) string {
	return fmt.Sprintf("/api/markets/%s/%s", url.PathEscape(marketID), action)
}
