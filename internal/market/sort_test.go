package market

import (
	"testing"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func sortFixture(now time.Time) []domain.Stream {
	return []domain.Stream{
		{ID: "idle", Markets: []domain.Market{
			{ID: "x", Status: domain.MarketStatusResolved, CreatedAt: now.Add(-time.Minute)},
		}},
		{ID: "big", Markets: []domain.Market{
			{ID: "b", Status: domain.MarketStatusActive, YesVolume: 500, NoVolume: 500,
				EndsAt: ptrTime(now.Add(10 * time.Minute)), CreatedAt: now.Add(-3 * time.Hour)},
		}},
		{ID: "small", Markets: []domain.Market{
			{ID: "s", Status: domain.MarketStatusActive, YesVolume: 5, NoVolume: 5,
				EndsAt: ptrTime(now.Add(2 * time.Minute)), CreatedAt: now.Add(-2 * time.Hour)},
		}},
	}
}

func ids(streams []domain.Stream) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		out[i] = s.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortStreams(t *testing.T) {
	now := time.Now()
	cases := map[SortKey][]string{
		SortTrending: {"big", "small", "idle"},
		SortEnding:   {"small", "big", "idle"},
		SortNewest:   {"idle", "small", "big"},
	}
	for key, want := range cases {
		got := ids(SortStreams(sortFixture(now), key, now))
		if !equalIDs(got, want) {
			t.Errorf("%s: got %v, want %v", key, got, want)
		}
	}
}

func TestSortStreams_DoesNotMutateInput(t *testing.T) {
	now := time.Now()
	in := sortFixture(now)
	_ = SortStreams(in, SortEnding, now)
	if got := ids(in); !equalIDs(got, []string{"idle", "big", "small"}) {
		t.Errorf("input reordered: %v", got)
	}
}

func TestParseSortKey(t *testing.T) {
	for in, want := range map[string]SortKey{
		"":         SortTrending,
		"Trending": SortTrending,
		"ending":   SortEnding,
		"newest":   SortNewest,
	} {
		got, err := ParseSortKey(in)
		if err != nil || got != want {
			t.Errorf("ParseSortKey(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSortKey("random"); err == nil {
		t.Error("expected error for unknown sort")
	}
}
