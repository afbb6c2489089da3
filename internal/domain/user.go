package domain

import "time"

// Identity is the caller on whose behalf a wager or admin action is made.
// Authentication itself is delegated to the external identity provider.
type Identity struct {
	UserID        string
	Authenticated bool
	Admin         bool
}

// UserStats is the read-only stats projection for a profile.
type UserStats struct {
	UserID        string  `json:"user_id"`
	Balance       float64 `json:"balance"`
	TotalBets     int     `json:"total_bets"`
	TotalWagered  float64 `json:"total_wagered"`
	TotalWon      float64 `json:"total_won"`
	WinRate       float64 `json:"win_rate"`
	NetProfit     float64 `json:"net_profit"`
	ActiveBets    int     `json:"active_bets"`
	LeaderboardNo int     `json:"rank,omitempty"`
}

// Transaction is one ledger entry from the user's transaction tab.
type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	MarketID    string    `json:"market_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryStatus classifies a settled or pending bet-history row.
type HistoryStatus string

const (
	HistoryPending  HistoryStatus = "pending"
	HistoryWon      HistoryStatus = "won"
	HistoryLost     HistoryStatus = "lost"
	HistoryRefunded HistoryStatus = "refunded"
)

// HistoryRow is a bet-history entry normalized for tabular display.
type HistoryRow struct {
	PositionID string        `json:"position_id"`
	MarketID   string        `json:"market_id"`
	Question   string        `json:"question"`
	StreamName string        `json:"stream_name,omitempty"`
	Side       string        `json:"side"`
	Amount     float64       `json:"amount"`
	Shares     float64       `json:"shares"`
	Price      float64       `json:"price"`
	Status     HistoryStatus `json:"status"`
	Payout     float64       `json:"payout"`
	PnL        float64       `json:"pnl"`
	CreatedAt  time.Time     `json:"created_at"`
}

// UserFilter narrows the profile tab endpoints.
type UserFilter struct {
	Status string
	Limit  int
	Offset int
}
