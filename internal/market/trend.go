package market

import (
	"sort"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// NormalizePoint clamps YesPct into [0,100] and recomputes NoPct from it.
func NormalizePoint(p domain.TrendPoint) domain.TrendPoint {
	p.YesPct = ClampPct(p.YesPct)
	p.NoPct = 100 - p.YesPct
	return p
}

// MergeTrend merges the backend series with locally observed points, keyed by
// timestamp. Incoming points replace existing ones at the same timestamp. The
// result is sorted by time and every point satisfies YesPct + NoPct = 100.
func MergeTrend(existing, incoming []domain.TrendPoint) []domain.TrendPoint {
	byTS := make(map[int64]domain.TrendPoint, len(existing)+len(incoming))
	for _, p := range existing {
		byTS[p.TS.UnixMilli()] = NormalizePoint(p)
	}
	for _, p := range incoming {
		byTS[p.TS.UnixMilli()] = NormalizePoint(p)
	}

	out := make([]domain.TrendPoint, 0, len(byTS))
	for _, p := range byTS {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}

// LivePoint builds a trend point from the market's current odds.
func LivePoint(m *domain.Market, now time.Time) domain.TrendPoint {
	o := ComputeOdds(m)
	return domain.TrendPoint{TS: now, YesPct: o.YesPct, NoPct: o.NoPct}
}

// TrimTrend drops points older than since.
func TrimTrend(points []domain.TrendPoint, since time.Time) []domain.TrendPoint {
	out := points[:0:0]
	for _, p := range points {
		if !p.TS.Before(since) {
			out = append(out, p)
		}
	}
	return out
}
