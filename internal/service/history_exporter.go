package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// HistoryExport is the document written for one user.
type HistoryExport struct {
	UserID     string              `json:"user_id"`
	ExportedAt time.Time           `json:"exported_at"`
	Rows       []domain.HistoryRow `json:"rows"`
}

// HistoryExporter uploads a user's normalized bet history as JSON.
type HistoryExporter struct {
	profile *ProfileService
	blob    domain.BlobWriter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHistoryExporter creates a HistoryExporter.
func NewHistoryExporter(profile *ProfileService, blob domain.BlobWriter, logger *slog.Logger) *HistoryExporter {
	return &HistoryExporter{
		profile: profile,
		blob:    blob,
		logger:  logger.With(slog.String("component", "history_exporter")),
		now:     time.Now,
	}
}

// Export fetches the full history of userID and uploads it, returning the
// object path. An unreachable backend falls back to the last history fetched
// for the user, if any.
func (e *HistoryExporter) Export(ctx context.Context, userID string) (string, error) {
	rows, err := e.profile.History(ctx, userID, domain.UserFilter{})
	if err != nil {
		last := e.profile.LastHistory(userID)
		if !errors.Is(err, domain.ErrUnavailable) || len(last) == 0 {
			return "", fmt.Errorf("history_exporter: %w", err)
		}
		e.logger.WarnContext(ctx, "history_exporter: backend unreachable, exporting last fetched history",
			slog.String("user_id", userID),
			slog.Int("rows", len(last)),
		)
		rows = last
	}

	now := e.now().UTC()
	doc := HistoryExport{UserID: userID, ExportedAt: now, Rows: rows}
	if doc.Rows == nil {
		doc.Rows = []domain.HistoryRow{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("history_exporter: marshal: %w", err)
	}

	key := path.Join("history", userID, now.Format("20060102T150405Z")+".json")
	if err := e.blob.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("history_exporter: upload: %w", err)
	}

	e.logger.InfoContext(ctx, "history_exporter: exported",
		slog.String("user_id", userID),
		slog.String("path", key),
		slog.Int("rows", len(rows)),
	)
	return key, nil
}
