package domain

import "time"

// MarketStatus represents the server-driven lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusPending   MarketStatus = "pending"
	MarketStatusScheduled MarketStatus = "scheduled"
	MarketStatusActive    MarketStatus = "active"
	MarketStatusEnded     MarketStatus = "ended"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Settled reports whether positions on a market in this status can no longer
// change.
func (s MarketStatus) Settled() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Market is a binary YES/NO question attached to a stream.
//
// TotalVolume and YesPrice are optional on the wire; nil means the backend did
// not send the field and the value must be derived.
type Market struct {
	ID          string       `json:"id"`
	StreamID    string       `json:"stream_id"`
	Question    string       `json:"question"`
	Status      MarketStatus `json:"status"`
	YesVolume   float64      `json:"yes_volume"`
	NoVolume    float64      `json:"no_volume"`
	TotalVolume *float64     `json:"total_volume,omitempty"`
	YesPrice    *float64     `json:"yes_price,omitempty"`
	EndsAt      *time.Time   `json:"ends_at,omitempty"`
	Outcome     *bool        `json:"outcome"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Stream is a live video room. It owns zero or more markets over its lifetime.
type Stream struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	HamsterName   string   `json:"hamster_name"`
	Description   string   `json:"description"`
	IsActive      bool     `json:"is_active"`
	ViewerCount   int      `json:"viewer_count"`
	MuxPlaybackID string   `json:"mux_playback_id"`
	Markets       []Market `json:"markets"`
}

// MarketByID returns the stream's market with the given id, or nil.
func (s *Stream) MarketByID(id string) *Market {
	if s == nil {
		return nil
	}
	for i := range s.Markets {
		if s.Markets[i].ID == id {
			return &s.Markets[i]
		}
	}
	return nil
}

// RefundSummary is returned by the backend after a market is cancelled.
type RefundSummary struct {
	TotalRefunded     float64 `json:"totalRefunded"`
	UsersRefunded     int     `json:"usersRefunded"`
	PositionsRefunded int     `json:"positionsRefunded"`
}
