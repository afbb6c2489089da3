package domain

import (
	"encoding/json"
	"time"
)

// Event names broadcast between view components.
const (
	EventMarketResolved  = "marketResolved"
	EventMarketCancelled = "marketCancelled"
	EventMarketRenewed   = "marketRenewed"
	EventRecentBet       = "recent-bet"
	EventStreams         = "streams"
	EventNotice          = "notice"
)

// Event is a single message on the application event bus.
type Event struct {
	Name     string          `json:"type"`
	MarketID string          `json:"market_id,omitempty"`
	StreamID string          `json:"stream_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`

	// Origin identifies the process that first published a bridged event.
	// Empty for events published locally.
	Origin string `json:"origin,omitempty"`
}

// NewEvent builds an Event, marshalling payload to JSON. A payload that cannot
// be marshalled is dropped.
func NewEvent(name, marketID string, payload any) Event {
	ev := Event{Name: name, MarketID: marketID, At: time.Now().UTC()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// RecentBet is the payload of EventRecentBet, consumed by ticker displays.
type RecentBet struct {
	UserID   string  `json:"user_id"`
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
}
