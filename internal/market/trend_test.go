package market

import (
	"testing"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func TestMergeTrend(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	existing := []domain.TrendPoint{
		{TS: base.Add(2 * time.Minute), YesPct: 60, NoPct: 40},
		{TS: base, YesPct: 50, NoPct: 50},
	}
	incoming := []domain.TrendPoint{
		{TS: base.Add(2 * time.Minute), YesPct: 70, NoPct: 10}, // replaces, NoPct recomputed
		{TS: base.Add(time.Minute), YesPct: 130, NoPct: -30},
	}
	got := MergeTrend(existing, incoming)
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	want := []int{50, 100, 70}
	for i, p := range got {
		if p.YesPct != want[i] {
			t.Errorf("point %d: yes %d, want %d", i, p.YesPct, want[i])
		}
		if p.YesPct+p.NoPct != 100 {
			t.Errorf("point %d: %d + %d != 100", i, p.YesPct, p.NoPct)
		}
		if i > 0 && !got[i-1].TS.Before(p.TS) {
			t.Errorf("points not sorted at %d", i)
		}
	}
}

func TestTrimTrend(t *testing.T) {
	base := time.Now()
	points := []domain.TrendPoint{
		{TS: base.Add(-time.Hour)},
		{TS: base.Add(-time.Minute)},
		{TS: base},
	}
	got := TrimTrend(points, base.Add(-30*time.Minute))
	if len(got) != 2 {
		t.Errorf("expected 2 points after trim, got %d", len(got))
	}
}

func TestLivePoint(t *testing.T) {
	now := time.Now()
	p := LivePoint(&domain.Market{YesVolume: 1, NoVolume: 3}, now)
	if p.YesPct != 25 || p.NoPct != 75 || !p.TS.Equal(now) {
		t.Errorf("unexpected live point %+v", p)
	}
}
