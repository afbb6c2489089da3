package service

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func streamFixtures(b *backend, now time.Time) {
	ends := now.Add(10 * time.Minute).UTC().Format(time.RFC3339)
	b.handle("GET /api/streams/s1", `{"stream":{"id":"s1","name":"Cage","markets":[]}}`)
	b.handle("GET /api/markets/stream/s1", fmt.Sprintf(`{"markets":[
	 {"id":"m0","status":"resolved","question":"Earlier?"},
	 {"id":"m1","status":"active","question":"Wheel?","yes_volume":60,"no_volume":40,"ends_at":%q}]}`, ends))
	b.handle("GET /api/markets/streams/s1/trend", fmt.Sprintf(`{"points":[
	 {"ts":%q,"yesPct":30,"noPct":70},
	 {"ts":%q,"yesPct":45,"noPct":55}]}`,
		now.Add(-90*time.Minute).UTC().Format(time.RFC3339),
		now.Add(-20*time.Minute).UTC().Format(time.RFC3339)))
}

func TestStreamRefresh_Ready(t *testing.T) {
	b := newBackend(t)
	streamFixtures(b, time.Now())
	s := NewStreamService(b.client(), time.Minute, time.Hour, testLogger())

	if got := s.State().Status; got != DetailLoading {
		t.Fatalf("initial status = %s", got)
	}
	s.Focus("s1")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	st := s.State()
	if st.Status != DetailReady || st.Stream == nil || len(st.Stream.Markets) != 2 {
		t.Fatalf("state = %+v", st)
	}
	if st.ActiveMarket == nil || st.ActiveMarket.ID != "m1" {
		t.Fatalf("active market = %+v", st.ActiveMarket)
	}
	if st.Odds.YesPct != 60 {
		t.Fatalf("odds = %+v", st.Odds)
	}
	if st.Remaining <= 9*time.Minute {
		t.Fatalf("remaining = %v", st.Remaining)
	}

	// The 90-minute-old point falls outside the window; the live point is
	// appended after the backend series.
	if len(st.Trend) != 2 {
		t.Fatalf("trend = %+v", st.Trend)
	}
	if st.Trend[0].YesPct != 45 || st.Trend[1].YesPct != 60 {
		t.Fatalf("trend = %+v", st.Trend)
	}
	for _, p := range st.Trend {
		if p.YesPct+p.NoPct != 100 {
			t.Fatalf("point %+v does not sum to 100", p)
		}
	}
}

func TestStreamRefresh_NotFound(t *testing.T) {
	b := newBackend(t)
	b.handleStatus("GET /api/streams/ghost", http.StatusNotFound, `{"error":"Stream not found"}`)
	b.handle("GET /api/markets/stream/ghost", `{"markets":[]}`)
	b.handle("GET /api/markets/streams/ghost/trend", `{"points":[]}`)
	s := NewStreamService(b.client(), time.Minute, time.Hour, testLogger())

	s.Focus("ghost")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := s.State().Status; got != DetailNotFound {
		t.Fatalf("status = %s", got)
	}
}

func TestStreamRefresh_TrendFailureIsNotFatal(t *testing.T) {
	b := newBackend(t)
	ends := time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339)
	b.handle("GET /api/streams/s1", `{"stream":{"id":"s1","name":"Cage"}}`)
	b.handle("GET /api/markets/stream/s1", fmt.Sprintf(`{"markets":[{"id":"m1","status":"active","ends_at":%q}]}`, ends))
	b.handleStatus("GET /api/markets/streams/s1/trend", http.StatusInternalServerError, `{"error":"no trend"}`)
	s := NewStreamService(b.client(), time.Minute, time.Hour, testLogger())

	s.Focus("s1")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	st := s.State()
	if st.Status != DetailReady || len(st.Trend) != 1 || st.Trend[0].YesPct != 50 {
		t.Fatalf("state = %+v", st)
	}
}

func TestStreamRefresh_ErrorKeepsStaleData(t *testing.T) {
	b := newBackend(t)
	var failing atomic.Bool
	ends := time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339)
	b.mux.HandleFunc("GET /api/streams/s1", func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"database unavailable"}`))
			return
		}
		w.Write([]byte(`{"stream":{"id":"s1","name":"Cage"}}`))
	})
	b.handle("GET /api/markets/stream/s1", fmt.Sprintf(`{"markets":[{"id":"m1","status":"active","ends_at":%q}]}`, ends))
	b.handle("GET /api/markets/streams/s1/trend", `{"points":[]}`)
	s := NewStreamService(b.client(), time.Minute, time.Hour, testLogger())
	ctx := context.Background()

	s.Focus("s1")
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	failing.Store(true)
	if err := s.Refresh(ctx); err == nil {
		t.Fatal("expected error")
	}
	st := s.State()
	if st.Status != DetailReady || st.Stream == nil || st.Stream.Name != "Cage" {
		t.Fatalf("stale data lost: %+v", st)
	}
	if st.Error != "database unavailable" {
		t.Fatalf("error = %q", st.Error)
	}
}

func TestStreamFocus_AbortsInFlight(t *testing.T) {
	b := newBackend(t)
	entered := make(chan struct{}, 3)
	block := func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-r.Context().Done()
	}
	b.mux.HandleFunc("GET /api/streams/slow", block)
	b.mux.HandleFunc("GET /api/markets/stream/slow", block)
	b.mux.HandleFunc("GET /api/markets/streams/slow/trend", block)
	s := NewStreamService(b.client(), time.Minute, time.Hour, testLogger())

	s.Focus("slow")
	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the backend")
	}
	s.Focus("other")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("aborted Refresh returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh was not aborted")
	}

	st := s.State()
	s.mu.RLock()
	focused := s.streamID
	s.mu.RUnlock()
	if focused != "other" || st.Status != DetailLoading || st.Stream != nil {
		t.Fatalf("state after focus change = %s %+v", focused, st)
	}
}

func TestStreamConcerns(t *testing.T) {
	s := NewStreamService(nil, time.Minute, time.Hour, testLogger())
	s.Focus("s1")
	s.state = StreamDetail{Status: DetailReady, Stream: &domain.Stream{ID: "s1", Markets: []domain.Market{{ID: "m1"}}}}

	cases := []struct {
		ev   domain.Event
		want bool
	}{
		{domain.Event{StreamID: "s1"}, true},
		{domain.Event{StreamID: "s2", MarketID: "m1"}, false},
		{domain.Event{MarketID: "m1"}, true},
		{domain.Event{MarketID: "m9"}, false},
		{domain.Event{}, true},
	}
	for _, tc := range cases {
		if got := s.concerns(tc.ev); got != tc.want {
			t.Errorf("concerns(%+v) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}
