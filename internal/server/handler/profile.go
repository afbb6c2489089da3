package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/server/middleware"
)

// ProfileService serves the profile tabs.
type ProfileService interface {
	Tab(ctx context.Context, userID, tab string, f domain.UserFilter) (any, error)
}

// HistoryExporter uploads a user's bet history and returns the object path.
type HistoryExporter interface {
	Export(ctx context.Context, userID string) (string, error)
}

// ProfileHandler serves user profile endpoints.
type ProfileHandler struct {
	profile  ProfileService
	exporter HistoryExporter
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler. exporter may be nil when object
// storage is not configured.
func NewProfileHandler(profile ProfileService, exporter HistoryExporter, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profile: profile, exporter: exporter, logger: logger}
}

// Tab returns one profile tab: active, history, stats or transactions.
// GET /api/users/{id}/{tab}?status=&limit=&offset=
func (h *ProfileHandler) Tab(w http.ResponseWriter, r *http.Request) {
	userID, tab := pathParam(r, "id"), pathParam(r, "tab")

	v, err := h.profile.Tab(r.Context(), userID, tab, parseFilter(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{tab: v})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "Connection error")
	default:
		h.logger.ErrorContext(r.Context(), "handler: profile tab failed",
			slog.String("user_id", userID),
			slog.String("tab", tab),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to load "+tab)
	}
}

// Export uploads the user's bet history. Only the user or an admin may
// export.
// POST /api/users/{id}/export
func (h *ProfileHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "history export is not configured")
		return
	}
	userID := pathParam(r, "id")
	who := middleware.IdentityFrom(r.Context())
	if !who.Authenticated || (who.UserID != userID && !who.Admin) {
		writeError(w, http.StatusForbidden, "cannot export another user's history")
		return
	}

	path, err := h.exporter.Export(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: export history failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to export history")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}
