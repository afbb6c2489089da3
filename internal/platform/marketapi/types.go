package marketapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/market"
)

// flexFloat unmarshals from a JSON number, a numeric string, or null (zero).
// Volumes and prices arrive as either depending on the backend's DB driver.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || len(data) == 0 {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("marketapi: parse number %q: %w", s, err)
	}
	*f = flexFloat(n)
	return nil
}

// flexBool unmarshals from a JSON bool or a string ("true"/"yes"/"1").
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// flexString unmarshals ids that may be sent as numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexTime unmarshals an ISO-8601 timestamp, epoch milliseconds, or null.
type flexTime struct {
	time.Time
	Valid bool
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexTime{}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*f = flexTime{Time: time.UnixMilli(ms).UTC(), Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*f = flexTime{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime{Time: t.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("marketapi: parse time %q", s)
}

func (f flexTime) ptr() *time.Time {
	if !f.Valid {
		return nil
	}
	t := f.Time
	return &t
}

// --------------------------------------------------------------------------
// DTOs
// --------------------------------------------------------------------------

// apiMarket is a market as the backend sends it.
type apiMarket struct {
	ID          flexString `json:"id"`
	StreamID    flexString `json:"stream_id"`
	Question    string     `json:"question"`
	Status      string     `json:"status"`
	YesVolume   flexFloat  `json:"yes_volume"`
	NoVolume    flexFloat  `json:"no_volume"`
	TotalVolume *flexFloat `json:"total_volume"`
	YesPrice    *flexFloat `json:"yes_price"`
	EndsAt      flexTime   `json:"ends_at"`
	Outcome     *flexBool  `json:"outcome"`
	CreatedAt   flexTime   `json:"created_at"`
	UpdatedAt   flexTime   `json:"updated_at"`
}

func (m *apiMarket) toDomain() domain.Market {
	out := domain.Market{
		ID:        string(m.ID),
		StreamID:  string(m.StreamID),
		Question:  m.Question,
		Status:    domain.MarketStatus(strings.ToLower(strings.TrimSpace(m.Status))),
		YesVolume: float64(m.YesVolume),
		NoVolume:  float64(m.NoVolume),
		EndsAt:    m.EndsAt.ptr(),
		CreatedAt: m.CreatedAt.Time,
		UpdatedAt: m.UpdatedAt.Time,
	}
	if m.TotalVolume != nil {
		v := float64(*m.TotalVolume)
		out.TotalVolume = &v
	}
	if m.YesPrice != nil {
		v := float64(*m.YesPrice)
		out.YesPrice = &v
	}
	if m.Outcome != nil {
		v := bool(*m.Outcome)
		out.Outcome = &v
	}
	return out
}

// apiStream is a stream with optionally nested markets.
type apiStream struct {
	ID            flexString  `json:"id"`
	Name          string      `json:"name"`
	HamsterName   string      `json:"hamster_name"`
	Description   string      `json:"description"`
	IsActive      flexBool    `json:"is_active"`
	ViewerCount   flexFloat   `json:"viewer_count"`
	MuxPlaybackID string      `json:"mux_playback_id"`
	Markets       []apiMarket `json:"markets"`
}

func (s *apiStream) toDomain() domain.Stream {
	out := domain.Stream{
		ID:            string(s.ID),
		Name:          s.Name,
		HamsterName:   s.HamsterName,
		Description:   s.Description,
		IsActive:      bool(s.IsActive),
		ViewerCount:   int(s.ViewerCount),
		MuxPlaybackID: s.MuxPlaybackID,
		Markets:       make([]domain.Market, 0, len(s.Markets)),
	}
	for i := range s.Markets {
		m := s.Markets[i].toDomain()
		if m.StreamID == "" {
			m.StreamID = out.ID
		}
		out.Markets = append(out.Markets, m)
	}
	return out
}

// apiPosition is a wager as returned by the bet and active-positions endpoints.
type apiPosition struct {
	ID             flexString `json:"id"`
	UserID         flexString `json:"user_id"`
	MarketID       flexString `json:"market_id"`
	Side           flexBool   `json:"side"`
	Amount         flexFloat  `json:"amount"`
	Shares         flexFloat  `json:"shares"`
	Price          flexFloat  `json:"price"`
	TransactionFee flexFloat  `json:"transaction_fee"`
	CreatedAt      flexTime   `json:"created_at"`
}

func (p *apiPosition) toDomain() domain.Position {
	return domain.Position{
		ID:             string(p.ID),
		UserID:         string(p.UserID),
		MarketID:       string(p.MarketID),
		Side:           bool(p.Side),
		Amount:         float64(p.Amount),
		Shares:         float64(p.Shares),
		Price:          float64(p.Price),
		TransactionFee: float64(p.TransactionFee),
		CreatedAt:      p.CreatedAt.Time,
	}
}

// apiRefundSummary is the cancel response summary.
type apiRefundSummary struct {
	TotalRefunded     flexFloat `json:"totalRefunded"`
	UsersRefunded     flexFloat `json:"usersRefunded"`
	PositionsRefunded flexFloat `json:"positionsRefunded"`
}

func (r *apiRefundSummary) toDomain() domain.RefundSummary {
	return domain.RefundSummary{
		TotalRefunded:     float64(r.TotalRefunded),
		UsersRefunded:     int(r.UsersRefunded),
		PositionsRefunded: int(r.PositionsRefunded),
	}
}

// apiTrendPoint is one odds-history sample.
type apiTrendPoint struct {
	TS     flexTime  `json:"ts"`
	YesPct flexFloat `json:"yesPct"`
	NoPct  flexFloat `json:"noPct"`
}

func (p *apiTrendPoint) toDomain() domain.TrendPoint {
	return market.NormalizePoint(domain.TrendPoint{
		TS:     p.TS.Time,
		YesPct: int(math.Round(float64(p.YesPct))),
	})
}

// apiHistoryRow is a bet-history row. The backend joins position and market
// fields either flat or under a nested "market" object.
type apiHistoryRow struct {
	apiPosition
	PositionID   flexString `json:"position_id"`
	Question     string     `json:"question"`
	StreamName   string     `json:"stream_name"`
	Status       string     `json:"status"`
	MarketStatus string     `json:"market_status"`
	Outcome      *flexBool  `json:"outcome"`
	Payout       *flexFloat `json:"payout"`
	Market       *apiMarket `json:"market"`
}

func (r *apiHistoryRow) toDomain() domain.HistoryRow {
	pos := r.apiPosition.toDomain()
	if pos.ID == "" {
		pos.ID = string(r.PositionID)
	}

	question := r.Question
	marketStatus := strings.ToLower(r.MarketStatus)
	outcome := r.Outcome
	if r.Market != nil {
		if question == "" {
			question = r.Market.Question
		}
		if marketStatus == "" {
			marketStatus = strings.ToLower(r.Market.Status)
		}
		if outcome == nil {
			outcome = r.Market.Outcome
		}
		if pos.MarketID == "" {
			pos.MarketID = string(r.Market.ID)
		}
	}

	row := domain.HistoryRow{
		PositionID: pos.ID,
		MarketID:   pos.MarketID,
		Question:   question,
		StreamName: r.StreamName,
		Side:       domain.SideLabel(pos.Side),
		Amount:     pos.Amount,
		Shares:     pos.Shares,
		Price:      pos.Price,
		Status:     historyStatus(r.Status, marketStatus, outcome, pos.Side),
		CreatedAt:  pos.CreatedAt,
	}

	payout := decimal.Zero
	switch {
	case r.Payout != nil:
		payout = decimal.NewFromFloat(float64(*r.Payout))
	case row.Status == domain.HistoryWon:
		payout = market.SettledPayout(pos, pos.Side)
	case row.Status == domain.HistoryRefunded:
		payout = decimal.NewFromFloat(pos.Amount)
	}
	row.Payout = payout.InexactFloat64()
	if row.Status != domain.HistoryPending {
		row.PnL = payout.Sub(decimal.NewFromFloat(pos.Amount)).InexactFloat64()
	}
	return row
}

func historyStatus(status, marketStatus string, outcome *flexBool, side bool) domain.HistoryStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "won", "win":
		return domain.HistoryWon
	case "lost", "loss":
		return domain.HistoryLost
	case "refunded", "cancelled", "canceled":
		return domain.HistoryRefunded
	}
	switch domain.MarketStatus(marketStatus) {
	case domain.MarketStatusCancelled:
		return domain.HistoryRefunded
	case domain.MarketStatusResolved:
		if outcome != nil {
			if bool(*outcome) == side {
				return domain.HistoryWon
			}
			return domain.HistoryLost
		}
	}
	return domain.HistoryPending
}

// --------------------------------------------------------------------------
// Envelope decoding
// --------------------------------------------------------------------------

// decodeList accepts a bare JSON array or an object wrapping the array under
// one of keys (checked in order) or "data".
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, k := range append(keys, "data") {
		raw, ok := envelope[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if k == "data" && len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
			return decodeList[T](raw, keys...)
		}
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, nil
}

// decodeObject accepts either the bare object or one wrapped under key or
// "data". An empty body decodes to the zero value.
func decodeObject[T any](body []byte, key string) (T, error) {
	var zero T
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return zero, err
	}
	for _, k := range []string{key, "data"} {
		raw, ok := envelope[k]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var out T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return zero, err
		}
		return out, nil
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, err
	}
	return out, nil
}
