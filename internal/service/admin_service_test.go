package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAudit) Record(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) List(_ context.Context, limit, _ int) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > 0 && limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func newAdmin(b *backend) (*AdminService, *recordingBus, *recordingNotices, *memAudit) {
	bus := &recordingBus{}
	notices := &recordingNotices{}
	audit := &memAudit{}
	return NewAdminService(b.client(), newShadow(), bus, notices, audit, 0, testLogger()), bus, notices, audit
}

func TestCancel_ReasonTooShortSendsNothing(t *testing.T) {
	b := newBackend(t)
	var sent map[string]string
	b.mux.HandleFunc("POST /api/markets/m1/cancel", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		io.WriteString(w, `{"summary":{"totalRefunded":120,"usersRefunded":3,"positionsRefunded":4}}`)
	})
	s, bus, notices, audit := newAdmin(b)
	ctx := context.Background()

	_, n, err := s.Cancel(ctx, admin, "m1", "dup", Confirmed)
	if !errors.Is(err, domain.ErrReasonTooShort) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(n.Message, "at least 5 characters") {
		t.Fatalf("notice = %+v", n)
	}
	if _, _, err := s.Cancel(ctx, admin, "m1", "  dup  ", Confirmed); !errors.Is(err, domain.ErrReasonTooShort) {
		t.Fatalf("padded short reason err = %v", err)
	}
	if b.requests.Load() != 0 {
		t.Fatal("short reason reached the network")
	}

	summary, n, err := s.Cancel(ctx, admin, "m1", "duplicate", Confirmed)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if sent["reason"] != "duplicate" {
		t.Fatalf("sent = %v", sent)
	}
	if summary.UsersRefunded != 3 || summary.PositionsRefunded != 4 || summary.TotalRefunded != 120 {
		t.Fatalf("summary = %+v", summary)
	}
	if n.Message != "Refunded $120.00 to 3 users (4 positions)" || n.Severity != domain.SeveritySuccess {
		t.Fatalf("notice = %+v", n)
	}
	if !bus.has(domain.EventMarketCancelled) {
		t.Fatalf("events = %v", bus.names())
	}
	if notices.last().Title != "Market cancelled" {
		t.Fatalf("last notice = %+v", notices.last())
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != ActionCancel {
		t.Fatalf("audit = %+v", audit.entries)
	}
}

func TestResolve_EvictsShadowAndPublishes(t *testing.T) {
	b := newBackend(t)
	var sent map[string]any
	b.mux.HandleFunc("POST /api/markets/m1/resolve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		w.WriteHeader(http.StatusOK)
	})
	s, bus, _, _ := newAdmin(b)
	ctx := context.Background()
	_ = s.positions.Append(ctx, domain.Position{ID: "p1", UserID: "u1", MarketID: "m1"})
	_ = s.positions.Append(ctx, domain.Position{ID: "p2", UserID: "u1", MarketID: "m2"})

	n, err := s.Resolve(ctx, admin, "m1", true, " hamster reached the wheel ", Confirmed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sent["outcome"] != true || sent["resolutionNotes"] != "hamster reached the wheel" {
		t.Fatalf("sent = %v", sent)
	}
	if n.Message != "Outcome: YES" {
		t.Fatalf("notice = %+v", n)
	}
	left, _ := s.positions.Positions(ctx, "u1")
	if len(left) != 1 || left[0].MarketID != "m2" {
		t.Fatalf("shadow after resolve = %+v", left)
	}
	if !bus.has(domain.EventMarketResolved) {
		t.Fatalf("events = %v", bus.names())
	}
}

func TestResolveAndCancel_UpdateDashboardStatus(t *testing.T) {
	b := newBackend(t)
	var settled atomic.Bool
	b.mux.HandleFunc("GET /api/streams", func(w http.ResponseWriter, _ *http.Request) {
		m1, m2 := "active", "active"
		if settled.Load() {
			m1, m2 = "resolved", "cancelled"
		}
		fmt.Fprintf(w, `{"streams":[{"id":"s1","name":"Cage","markets":[{"id":"m1","status":%q},{"id":"m2","status":%q}]}]}`, m1, m2)
	})
	b.mux.HandleFunc("POST /api/markets/m1/resolve", func(w http.ResponseWriter, _ *http.Request) {
		settled.Store(true)
		w.WriteHeader(http.StatusOK)
	})
	b.handle("POST /api/markets/m2/cancel", `{"summary":{"totalRefunded":0,"usersRefunded":0,"positionsRefunded":0}}`)
	s, _, _, _ := newAdmin(b)
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, err := s.Resolve(ctx, admin, "m1", false, "", Confirmed); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, _, err := s.Cancel(ctx, admin, "m2", "stream went offline", Confirmed); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := s.Markets(domain.MarketStatusResolved); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("resolved markets = %+v", got)
	}
	if got := s.Markets(domain.MarketStatusCancelled); len(got) != 1 || got[0].ID != "m2" {
		t.Fatalf("cancelled markets = %+v", got)
	}
	if got := s.Markets(domain.MarketStatusActive); len(got) != 0 {
		t.Fatalf("active markets = %+v", got)
	}
}

func TestAdminActions_RequireConfirmation(t *testing.T) {
	b := newBackend(t)
	s, bus, _, _ := newAdmin(b)
	declined := ConfirmFunc(func(context.Context, AdminAction) bool { return false })
	ctx := context.Background()

	if _, err := s.Resolve(ctx, admin, "m1", false, "", declined); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("resolve err = %v", err)
	}
	if _, _, err := s.Cancel(ctx, admin, "m1", "duplicate", declined); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("cancel err = %v", err)
	}
	if _, _, err := s.Renew(ctx, admin, "m1", 10, "", nil); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("renew err = %v", err)
	}
	if b.requests.Load() != 0 || len(bus.names()) != 0 {
		t.Fatal("declined actions had side effects")
	}
}

func TestAdminActions_RequireAdmin(t *testing.T) {
	b := newBackend(t)
	s, _, notices, _ := newAdmin(b)
	_, err := s.Resolve(context.Background(), alice, "m1", true, "", Confirmed)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if notices.last().Severity != domain.SeverityError {
		t.Fatalf("notice = %+v", notices.last())
	}
}

func TestAdminActions_FailureNotice(t *testing.T) {
	b := newBackend(t)
	b.handleStatus("POST /api/markets/m1/resolve", http.StatusBadRequest, `{"error":"Market already resolved"}`)
	s, bus, notices, _ := newAdmin(b)

	n, err := s.Resolve(context.Background(), admin, "m1", false, "", Confirmed)
	if err == nil {
		t.Fatal("expected error")
	}
	if n.Title != "Resolve failed" || n.Message != "Market already resolved" || n.Severity != domain.SeverityError {
		t.Fatalf("notice = %+v", n)
	}
	if notices.last() != n {
		t.Fatalf("notifier got %+v", notices.last())
	}
	if len(bus.names()) != 0 {
		t.Fatalf("failed action published %v", bus.names())
	}
}

func TestRenew_PatchesDashboardOptimistically(t *testing.T) {
	b := newBackend(t)
	b.handle("GET /api/streams", `{"streams":[{"id":"s1","name":"Cage","markets":[{"id":"m1","status":"ended","question":"Old?","ends_at":"2026-01-01T00:00:00Z"}]}]}`)
	var sent map[string]any
	b.mux.HandleFunc("POST /api/markets/m1/renew", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		io.WriteString(w, `{}`)
	})
	s, bus, _, _ := newAdmin(b)
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := s.Markets(domain.MarketStatusEnded); len(got) != 1 {
		t.Fatalf("ended markets = %+v", got)
	}

	before := time.Now()
	m, _, err := s.Renew(ctx, admin, "m1", 15, "New question?", Confirmed)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if sent["additional_minutes"] != 15.0 || sent["new_question"] != "New question?" {
		t.Fatalf("sent = %v", sent)
	}
	if m.Status != domain.MarketStatusActive || m.Question != "New question?" || m.StreamID != "s1" {
		t.Fatalf("renewed = %+v", m)
	}
	if m.EndsAt == nil || m.EndsAt.Before(before.Add(14*time.Minute)) {
		t.Fatalf("ends_at = %v", m.EndsAt)
	}
	if !bus.has(domain.EventMarketRenewed) {
		t.Fatalf("events = %v", bus.names())
	}

	// The patch is visible only until the authoritative refetch lands, so
	// check the list directly rather than racing the background refresh.
	s.mu.RLock()
	patched := s.markets[0]
	s.mu.RUnlock()
	if patched.ID != "m1" {
		t.Fatalf("list = %+v", patched)
	}
}

func TestRenew_RejectsNonPositiveMinutes(t *testing.T) {
	b := newBackend(t)
	s, _, _, _ := newAdmin(b)
	if _, _, err := s.Renew(context.Background(), admin, "m1", 0, "", Confirmed); !errors.Is(err, domain.ErrInvalidRenewal) {
		t.Fatalf("err = %v", err)
	}
	if b.requests.Load() != 0 {
		t.Fatal("invalid renewal reached the network")
	}
}

func TestPatchRenewed_KeepsServerEndTime(t *testing.T) {
	s := NewAdminService(nil, nil, &recordingBus{}, nil, nil, 0, testLogger())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	oldEnd := now.Add(-time.Minute)
	serverEnd := now.Add(30 * time.Minute)
	s.markets = []domain.Market{{ID: "m1", StreamID: "s1", Status: domain.MarketStatusEnded, EndsAt: &oldEnd}}

	got := s.patchRenewed("m1", domain.Market{ID: "m1", EndsAt: &serverEnd}, 10, "", now)
	if !got.EndsAt.Equal(serverEnd) {
		t.Fatalf("ends_at = %v, want server value %v", got.EndsAt, serverEnd)
	}
	if s.markets[0].Status != domain.MarketStatusActive || s.markets[0].StreamID != "s1" {
		t.Fatalf("list entry = %+v", s.markets[0])
	}

	local := s.patchRenewed("m1", domain.Market{}, 10, "", now)
	if want := serverEnd.Add(10 * time.Minute); !local.EndsAt.Equal(want) {
		t.Fatalf("derived ends_at = %v, want %v", local.EndsAt, want)
	}

	// An earlier server end time still wins over the cached one.
	earlier := now.Add(10 * time.Minute)
	got = s.patchRenewed("m1", domain.Market{ID: "m1", EndsAt: &earlier}, 5, "", now)
	if !got.EndsAt.Equal(earlier) {
		t.Fatalf("ends_at = %v, want server value %v", got.EndsAt, earlier)
	}
	if !s.markets[0].EndsAt.Equal(earlier) {
		t.Fatalf("list ends_at = %v, want %v", s.markets[0].EndsAt, earlier)
	}
}
