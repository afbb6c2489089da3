package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// SortKey selects the ordering of the stream grid.
type SortKey string

const (
	SortTrending SortKey = "trending"
	SortEnding   SortKey = "ending"
	SortNewest   SortKey = "newest"
)

// ParseSortKey accepts the grid's sort names. An empty string means trending.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortTrending, "volume":
		return SortTrending, nil
	case SortEnding, "ending_soon", "soonest":
		return SortEnding, nil
	case SortNewest, "new":
		return SortNewest, nil
	default:
		return "", fmt.Errorf("market: unknown sort %q (valid: trending, ending, newest)", s)
	}
}

// SortStreams returns a copy of streams ordered by key. The sort is stable so
// streams that compare equal keep the backend's order.
func SortStreams(streams []domain.Stream, key SortKey, now time.Time) []domain.Stream {
	out := make([]domain.Stream, len(streams))
	copy(out, streams)

	switch key {
	case SortEnding:
		sort.SliceStable(out, func(i, j int) bool {
			ei, okI := futureEnd(&out[i], now)
			ej, okJ := futureEnd(&out[j], now)
			if okI != okJ {
				return okI
			}
			return okI && ei.Before(ej)
		})
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			return newestMarket(&out[i]).After(newestMarket(&out[j]))
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			vi, okI := activeVolume(&out[i], now)
			vj, okJ := activeVolume(&out[j], now)
			if okI != okJ {
				return okI
			}
			return vi > vj
		})
	}
	return out
}

func activeVolume(s *domain.Stream, now time.Time) (float64, bool) {
	m := PickActiveMarket(s, now)
	if m == nil {
		return 0, false
	}
	return ComputeOdds(m).TotalVolume, true
}

func futureEnd(s *domain.Stream, now time.Time) (time.Time, bool) {
	m := PickActiveMarket(s, now)
	if m == nil || m.EndsAt == nil || !m.EndsAt.After(now) {
		return time.Time{}, false
	}
	return *m.EndsAt, true
}

func newestMarket(s *domain.Stream) time.Time {
	var latest time.Time
	for _, m := range s.Markets {
		if m.CreatedAt.After(latest) {
			latest = m.CreatedAt
		}
	}
	return latest
}
