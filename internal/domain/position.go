package domain

import "time"

// Side values. A position's side is a boolean on the wire: true is YES.
const (
	SideYes = true
	SideNo  = false
)

// SideLabel renders a boolean side as "YES" or "NO".
func SideLabel(side bool) string {
	if side {
		return "YES"
	}
	return "NO"
}

// Position is a user's wager on one side of one market. It is immutable once
// the market resolves; value and P&L are derived, never stored.
type Position struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	MarketID       string    `json:"market_id"`
	Side           bool      `json:"side"`
	Amount         float64   `json:"amount"`
	Shares         float64   `json:"shares"`
	Price          float64   `json:"price"`
	TransactionFee float64   `json:"transaction_fee"`
	CreatedAt      time.Time `json:"created_at"`
}
