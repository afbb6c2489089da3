// Package market holds the view-model logic derived from streams and markets:
// active-market selection, odds, countdowns, sort orders, trend series and
// position valuation. Everything here is pure and safe for concurrent use.
package market

import (
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// PickActiveMarket returns the market a stream is currently showing.
//
// Among markets with status active it prefers the first one whose end time is
// after now, then falls back to the first active market. It returns nil for a
// nil stream, a stream without markets, or one with no active market.
func PickActiveMarket(s *domain.Stream, now time.Time) *domain.Market {
	if s == nil || len(s.Markets) == 0 {
		return nil
	}

	var firstActive *domain.Market
	for i := range s.Markets {
		m := &s.Markets[i]
		if m.Status != domain.MarketStatusActive {
			continue
		}
		if m.EndsAt != nil && m.EndsAt.After(now) {
			return m
		}
		if firstActive == nil {
			firstActive = m
		}
	}
	return firstActive
}

// FilterByStatus returns the markets whose status is in statuses. An empty
// statuses list returns every market.
func FilterByStatus(markets []domain.Market, statuses ...domain.MarketStatus) []domain.Market {
	if len(statuses) == 0 {
		out := make([]domain.Market, len(markets))
		copy(out, markets)
		return out
	}
	want := make(map[domain.MarketStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if want[m.Status] {
			out = append(out, m)
		}
	}
	return out
}
