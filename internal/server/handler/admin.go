package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
	"github.com/zoomiesmarket/zoomies/internal/server/middleware"
	"github.com/zoomiesmarket/zoomies/internal/service"
)

// AdminService is the admin surface of the service layer.
type AdminService interface {
	Markets(statuses ...domain.MarketStatus) []domain.Market
	Resolve(ctx context.Context, who domain.Identity, marketID string, outcome bool, notes string, c service.Confirmer) (domain.Notice, error)
	Cancel(ctx context.Context, who domain.Identity, marketID, reason string, c service.Confirmer) (domain.RefundSummary, domain.Notice, error)
	Renew(ctx context.Context, who domain.Identity, marketID string, additionalMinutes int, newQuestion string, c service.Confirmer) (domain.Market, domain.Notice, error)
	CreateStream(ctx context.Context, who domain.Identity, req marketapi.CreateStreamRequest, c service.Confirmer) (domain.Stream, domain.Notice, error)
	DeleteStream(ctx context.Context, who domain.Identity, streamID string, c service.Confirmer) (domain.Notice, error)
	CreateMarket(ctx context.Context, who domain.Identity, req marketapi.CreateMarketRequest, c service.Confirmer) (domain.Market, domain.Notice, error)
	Audit(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error)
}

// AdminHandler serves the admin dashboard endpoints. Every mutating call must
// carry "confirm": true (or ?confirm=true); the confirmation dialog lives in
// the UI.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// confirmer turns the request's confirm flag into a service.Confirmer.
func confirmer(body bool, r *http.Request) service.Confirmer {
	ok := body
	if v, err := strconv.ParseBool(r.URL.Query().Get("confirm")); err == nil && v {
		ok = true
	}
	return service.ConfirmFunc(func(context.Context, service.AdminAction) bool { return ok })
}

// Markets lists dashboard markets, optionally filtered by status.
// GET /api/admin/markets?status=active,ended
func (h *AdminHandler) Markets(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.MarketStatus
	for _, s := range strings.Split(r.URL.Query().Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, domain.MarketStatus(strings.ToLower(s)))
		}
	}
	markets := h.admin.Markets(statuses...)
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

type resolveRequest struct {
	Outcome *bool  `json:"outcome"`
	Notes   string `json:"notes"`
	Confirm bool   `json:"confirm"`
}

// Resolve declares a market's outcome.
// POST /api/admin/markets/{id}/resolve
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Outcome == nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	n, err := h.admin.Resolve(r.Context(), middleware.IdentityFrom(r.Context()), pathParam(r, "id"), *req.Outcome, req.Notes, confirmer(req.Confirm, r))
	if err != nil {
		writeActionError(w, r, h.logger, "resolve market", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notice": n})
}

type cancelRequest struct {
	Reason  string `json:"reason"`
	Confirm bool   `json:"confirm"`
}

// Cancel cancels a market and refunds its positions.
// POST /api/admin/markets/{id}/cancel
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	summary, n, err := h.admin.Cancel(r.Context(), middleware.IdentityFrom(r.Context()), pathParam(r, "id"), req.Reason, confirmer(req.Confirm, r))
	if err != nil {
		writeActionError(w, r, h.logger, "cancel market", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "notice": n})
}

type renewRequest struct {
	AdditionalMinutes int    `json:"additional_minutes"`
	NewQuestion       string `json:"new_question"`
	Confirm           bool   `json:"confirm"`
}

// Renew extends a market.
// POST /api/admin/markets/{id}/renew
func (h *AdminHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m, n, err := h.admin.Renew(r.Context(), middleware.IdentityFrom(r.Context()), pathParam(r, "id"), req.AdditionalMinutes, req.NewQuestion, confirmer(req.Confirm, r))
	if err != nil {
		writeActionError(w, r, h.logger, "renew market", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market": m, "notice": n})
}

type createStreamRequest struct {
	marketapi.CreateStreamRequest
	Confirm bool `json:"confirm"`
}

// CreateStream creates a stream.
// POST /api/admin/streams
func (h *AdminHandler) CreateStream(w http.ResponseWriter, r *http.Request) {
	var req createStreamRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s, n, err := h.admin.CreateStream(r.Context(), middleware.IdentityFrom(r.Context()), req.CreateStreamRequest, confirmer(req.Confirm, r))
	if err != nil {
		writeActionError(w, r, h.logger, "create stream", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stream": s, "notice": n})
}

// DeleteStream removes a stream. Confirmation comes from ?confirm=true.
// DELETE /api/admin/streams/{id}
func (h *AdminHandler) DeleteStream(w http.ResponseWriter, r *http.Request) {
	n, err := h.admin.DeleteStream(r.Context(), middleware.IdentityFrom(r.Context()), pathParam(r, "id"), confirmer(false, r))
	if err != nil {
		writeActionError(w, r, h.logger, "delete stream", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notice": n})
}

type createMarketRequest struct {
	marketapi.CreateMarketRequest
	Confirm bool `json:"confirm"`
}

// CreateMarket opens a market on a stream.
// POST /api/admin/markets
func (h *AdminHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m, n, err := h.admin.CreateMarket(r.Context(), middleware.IdentityFrom(r.Context()), req.CreateMarketRequest, confirmer(req.Confirm, r))
	if err != nil {
		writeActionError(w, r, h.logger, "create market", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"market": m, "notice": n})
}

// Audit lists recorded admin actions.
// GET /api/admin/audit?limit=&offset=
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	if f.Limit == 0 {
		f.Limit = 50
	}
	entries, err := h.admin.Audit(r.Context(), f.Limit, f.Offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit trail")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
