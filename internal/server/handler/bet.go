package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/server/middleware"
	"github.com/zoomiesmarket/zoomies/internal/service"
)

// WagerService places bets on behalf of the caller.
type WagerService interface {
	PlaceBet(ctx context.Context, who domain.Identity, req service.BetRequest) (domain.Position, error)
}

// BetHandler serves the wager endpoint.
type BetHandler struct {
	wagers WagerService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(wagers WagerService, logger *slog.Logger) *BetHandler {
	return &BetHandler{wagers: wagers, logger: logger}
}

// betRequest accepts the amount as a JSON number or as text such as "$25".
type betRequest struct {
	MarketID string          `json:"market_id"`
	StreamID string          `json:"stream_id"`
	Side     bool            `json:"side"`
	Amount   json.RawMessage `json:"amount"`
}

func (b betRequest) amountText() string {
	var s string
	if err := json.Unmarshal(b.Amount, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(b.Amount, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(b.Amount)
}

// PlaceBet submits a wager for the caller identified by X-User-ID. Without
// market_id the stream's current active market is used.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos, err := h.wagers.PlaceBet(r.Context(), middleware.IdentityFrom(r.Context()), service.BetRequest{
		MarketID: req.MarketID,
		StreamID: req.StreamID,
		Side:     req.Side,
		Amount:   req.amountText(),
	})
	if err != nil {
		writeActionError(w, r, h.logger, "place bet", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"position": pos})
}
