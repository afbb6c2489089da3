package marketapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// ActivePositions returns the user's open positions.
// GET /api/users/:id/active
func (c *Client) ActivePositions(ctx context.Context, userID string, f domain.UserFilter) ([]domain.Position, error) {
	body, err := c.doGet(ctx, userPath(userID, "active", f))
	if err != nil {
		return nil, fmt.Errorf("marketapi: active positions for %s: %w", userID, err)
	}

	apiPositions, err := decodeList[apiPosition](body, "positions", "active")
	if err != nil {
		return nil, fmt.Errorf("marketapi: decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(apiPositions))
	for i := range apiPositions {
		p := apiPositions[i].toDomain()
		if p.UserID == "" {
			p.UserID = userID
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// History returns the user's bet history normalized into table rows.
// GET /api/users/:id/history
func (c *Client) History(ctx context.Context, userID string, f domain.UserFilter) ([]domain.HistoryRow, error) {
	body, err := c.doGet(ctx, userPath(userID, "history", f))
	if err != nil {
		return nil, fmt.Errorf("marketapi: history for %s: %w", userID, err)
	}

	apiRows, err := decodeList[apiHistoryRow](body, "history", "bets", "positions")
	if err != nil {
		return nil, fmt.Errorf("marketapi: decode history: %w", err)
	}

	rows := make([]domain.HistoryRow, 0, len(apiRows))
	for i := range apiRows {
		rows = append(rows, apiRows[i].toDomain())
	}
	return rows, nil
}

// apiUserStats is the stats tab payload.
type apiUserStats struct {
	UserID       flexString `json:"user_id"`
	Balance      flexFloat  `json:"balance"`
	TotalBets    flexFloat  `json:"total_bets"`
	TotalWagered flexFloat  `json:"total_wagered"`
	TotalWon     flexFloat  `json:"total_won"`
	WinRate      flexFloat  `json:"win_rate"`
	NetProfit    flexFloat  `json:"net_profit"`
	ActiveBets   flexFloat  `json:"active_bets"`
	Rank         flexFloat  `json:"rank"`
}

// Stats returns the user's aggregate stats.
// GET /api/users/:id/stats
func (c *Client) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	body, err := c.doGet(ctx, userPath(userID, "stats", domain.UserFilter{}))
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("marketapi: stats for %s: %w", userID, err)
	}

	s, err := decodeObject[apiUserStats](body, "stats")
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("marketapi: decode stats: %w", err)
	}
	out := domain.UserStats{
		UserID:        string(s.UserID),
		Balance:       float64(s.Balance),
		TotalBets:     int(s.TotalBets),
		TotalWagered:  float64(s.TotalWagered),
		TotalWon:      float64(s.TotalWon),
		WinRate:       float64(s.WinRate),
		NetProfit:     float64(s.NetProfit),
		ActiveBets:    int(s.ActiveBets),
		LeaderboardNo: int(s.Rank),
	}
	if out.UserID == "" {
		out.UserID = userID
	}
	return out, nil
}

// apiTransaction is a ledger row.
type apiTransaction struct {
	ID          flexString `json:"id"`
	Type        string     `json:"type"`
	Amount      flexFloat  `json:"amount"`
	Description string     `json:"description"`
	MarketID    flexString `json:"market_id"`
	CreatedAt   flexTime   `json:"created_at"`
}

// Transactions returns the user's ledger.
// GET /api/users/:id/transactions
func (c *Client) Transactions(ctx context.Context, userID string, f domain.UserFilter) ([]domain.Transaction, error) {
	body, err := c.doGet(ctx, userPath(userID, "transactions", f))
	if err != nil {
		return nil, fmt.Errorf("marketapi: transactions for %s: %w", userID, err)
	}

	apiTx, err := decodeList[apiTransaction](body, "transactions")
	if err != nil {
		return nil, fmt.Errorf("marketapi: decode transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(apiTx))
	for _, t := range apiTx {
		out = append(out, domain.Transaction{
			ID:          string(t.ID),
			Type:        t.Type,
			Amount:      float64(t.Amount),
			Description: t.Description,
			MarketID:    string(t.MarketID),
			CreatedAt:   t.CreatedAt.Time,
		})
	}
	return out, nil
}

// Register creates or refreshes the backend user record for an identity
// provider user object.
// POST /api/auth/register
func (c *Client) Register(ctx context.Context, privyUser any) error {
	if _, err := c.doPost(ctx, "/api/auth/register", map[string]any{"privyUser": privyUser}); err != nil {
		return fmt.Errorf("marketapi: register user: %w", err)
	}
	return nil
}

func userPath(userID, tab string, f domain.UserFilter) string {
	path := fmt.Sprintf("/api/users/%s/%s", url.PathEscape(userID), tab)

	params := url.Values{}
	if f.Status != "" {
		params.Set("status", f.Status)
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		params.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return path
}
