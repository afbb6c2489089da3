package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/market"
	"github.com/zoomiesmarket/zoomies/internal/service"
)

// FeedService is what the grid and detail endpoints need from the service
// layer.
type FeedService interface {
	Cards(key market.SortKey, now time.Time) []service.StreamCard
	FetchedAt() time.Time
}

// StreamLoader builds the detail view of one stream.
type StreamLoader interface {
	Load(ctx context.Context, streamID string) (service.StreamDetail, error)
}

// FeedHandler serves the stream grid and stream detail.
type FeedHandler struct {
	feed   FeedService
	detail StreamLoader
	logger *slog.Logger
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feed FeedService, detail StreamLoader, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, detail: detail, logger: logger}
}

type feedResponse struct {
	Sort      market.SortKey       `json:"sort"`
	Cards     []service.StreamCard `json:"cards"`
	FetchedAt *time.Time           `json:"fetched_at,omitempty"`
}

// Feed returns the sorted stream grid from the last poll.
// GET /api/feed?sort=trending|ending|newest
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	key, err := market.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := feedResponse{Sort: key, Cards: h.feed.Cards(key, time.Now())}
	if at := h.feed.FetchedAt(); !at.IsZero() {
		resp.FetchedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stream returns one stream with its active market, odds, countdown and
// trend. A stream the backend does not know is a 404.
// GET /api/streams/{id}
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing stream id")
		return
	}

	detail, err := h.detail.Load(r.Context(), id)
	switch {
	case err == nil && detail.Status == service.DetailNotFound:
		writeError(w, http.StatusNotFound, "stream not found")
	case err == nil:
		writeJSON(w, http.StatusOK, detail)
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusBadGateway, service.MsgConnection)
	default:
		h.logger.ErrorContext(r.Context(), "handler: load stream failed",
			slog.String("stream_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, detail.Error)
	}
}
