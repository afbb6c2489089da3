package domain

import (
	"context"
	"time"
)

// AuditEntry records one administrative action taken through this client.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	MarketID  string         `json:"market_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only log of admin actions.
type AuditStore interface {
	Record(ctx context.Context, e AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]AuditEntry, error)
}
