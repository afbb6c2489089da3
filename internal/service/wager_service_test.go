package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func newWager(b *backend, bus *recordingBus, opts ...WagerOption) (*WagerService, *ProfileService) {
	shadow := newShadow()
	profile := NewProfileService(b.client(), shadow, testLogger())
	return NewWagerService(b.client(), shadow, profile, nil, bus, BetLimits{}, testLogger(), opts...), profile
}

func TestPlaceBet_AmountValidation(t *testing.T) {
	b := newBackend(t)
	w, _ := newWager(b, &recordingBus{})

	cases := []struct {
		amount   string
		sentinel error
	}{
		{"abc", domain.ErrInvalidAmount},
		{"", domain.ErrInvalidAmount},
		{"0", domain.ErrInvalidAmount},
		{"-5", domain.ErrInvalidAmount},
		{"NaN", domain.ErrInvalidAmount},
		{"Inf", domain.ErrInvalidAmount},
		{"0.99", domain.ErrBelowMinimum},
		{"1000.01", domain.ErrAboveMaximum},
	}
	messages := make(map[string]bool)
	for _, tc := range cases {
		_, err := w.PlaceBet(context.Background(), alice, BetRequest{MarketID: "m1", Side: true, Amount: tc.amount})
		if !errors.Is(err, tc.sentinel) {
			t.Errorf("amount %q: err = %v, want %v", tc.amount, err, tc.sentinel)
			continue
		}
		ae, ok := AsActionError(err)
		if !ok || ae.Kind != OutcomeValidation {
			t.Errorf("amount %q: expected validation ActionError, got %v", tc.amount, err)
			continue
		}
		messages[ae.Message] = true
	}
	if len(messages) != 3 {
		t.Errorf("expected 3 distinct messages (invalid, min, max), got %v", messages)
	}
	if n := b.requests.Load(); n != 0 {
		t.Fatalf("validation failures made %d requests", n)
	}
}

func TestPlaceBet_AcceptsBoundaries(t *testing.T) {
	b := newBackend(t)
	b.handle("POST /api/markets/{id}/bet", `{"position":{"id":"p","side":true,"amount":1}}`)
	b.handle("GET /api/users/u1/active", `{"positions":[]}`)
	b.handle("GET /api/users/u1/history", `{"history":[]}`)
	w, _ := newWager(b, &recordingBus{})

	for i, amount := range []string{"1", "1000", "$1,000.00"} {
		market := fmt.Sprintf("m%d", i)
		if _, err := w.PlaceBet(context.Background(), alice, BetRequest{MarketID: market, Side: true, Amount: amount}); err != nil {
			t.Errorf("amount %q rejected: %v", amount, err)
		}
	}
}

func TestPlaceBet_RequiresLogin(t *testing.T) {
	b := newBackend(t)
	prompted := 0
	w, _ := newWager(b, &recordingBus{}, WithLoginPrompter(LoginPrompterFunc(func(context.Context) { prompted++ })))

	_, err := w.PlaceBet(context.Background(), domain.Identity{}, BetRequest{MarketID: "m1", Amount: "abc"})
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("err = %v", err)
	}
	if prompted != 1 {
		t.Fatalf("login prompted %d times", prompted)
	}
}

func TestPlaceBet_NoMarket(t *testing.T) {
	b := newBackend(t)
	w, _ := newWager(b, &recordingBus{})

	_, err := w.PlaceBet(context.Background(), alice, BetRequest{Amount: "10"})
	if !errors.Is(err, domain.ErrNoMarket) {
		t.Fatalf("err = %v", err)
	}
}

func TestPlaceInlineBet_UsesActiveMarket(t *testing.T) {
	b := newBackend(t)
	b.handle("GET /api/streams/s1", `{"stream":{"id":"s1","markets":[{"id":"old","status":"ended"},{"id":"m7","status":"active"}]}}`)
	var gotPath string
	b.mux.HandleFunc("POST /api/markets/{id}/bet", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"position":{"id":"p1"}}`)
	})
	b.handle("GET /api/users/u1/active", `[]`)
	b.handle("GET /api/users/u1/history", `[]`)

	shadow := newShadow()
	profile := NewProfileService(b.client(), shadow, testLogger())
	feed := NewFeedService(b.client(), profile, &recordingBus{}, 0, "", testLogger())
	w := NewWagerService(b.client(), shadow, profile, feed, &recordingBus{}, BetLimits{}, testLogger())

	if _, err := w.PlaceInlineBet(context.Background(), alice, "s1", false, "25"); err != nil {
		t.Fatalf("PlaceInlineBet: %v", err)
	}
	if gotPath != "/api/markets/m7/bet" {
		t.Fatalf("bet path = %q", gotPath)
	}

	b2 := newBackend(t)
	b2.handle("GET /api/streams/s2", `{"stream":{"id":"s2","markets":[{"id":"x","status":"resolved"}]}}`)
	feed2 := NewFeedService(b2.client(), nil, &recordingBus{}, 0, "", testLogger())
	w2 := NewWagerService(b2.client(), newShadow(), nil, feed2, &recordingBus{}, BetLimits{}, testLogger())
	if _, err := w2.PlaceInlineBet(context.Background(), alice, "s2", true, "5"); !errors.Is(err, domain.ErrNoMarket) {
		t.Fatalf("stream without active market: err = %v", err)
	}
}

func TestPlaceBet_OptimisticPositionBlocksSecondBet(t *testing.T) {
	b := newBackend(t)
	var body map[string]any
	b.mux.HandleFunc("POST /api/markets/m1/bet", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"position":{"id":"p1","market_id":"m1","user_id":"u1","side":true,"amount":50,"shares":100,"price":0.5}}`)
	})
	b.handle("GET /api/users/u1/active", `{"positions":[{"id":"p1","market_id":"m1","user_id":"u1","side":true,"amount":50}]}`)
	b.handle("GET /api/users/u1/history", `{"history":[]}`)

	bus := &recordingBus{}
	w, _ := newWager(b, bus)
	ctx := context.Background()

	pos, err := w.PlaceBet(ctx, alice, BetRequest{MarketID: "m1", Side: true, Amount: "50"})
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if pos.MarketID != "m1" || !pos.Side || pos.Amount != 50 {
		t.Fatalf("position = %+v", pos)
	}
	if body["userId"] != "u1" || body["side"] != true || body["amount"] != 50.0 {
		t.Fatalf("request body = %v", body)
	}

	cached, _ := w.positions.Positions(ctx, "u1")
	if len(cached) != 1 || cached[0].MarketID != "m1" || !cached[0].Side || cached[0].Amount != 50 {
		t.Fatalf("shadow = %+v", cached)
	}
	if !bus.has(domain.EventRecentBet) {
		t.Fatalf("events = %v, want recent-bet", bus.names())
	}

	before := b.requests.Load()
	_, err = w.PlaceBet(ctx, alice, BetRequest{MarketID: "m1", Side: false, Amount: "10"})
	if !errors.Is(err, domain.ErrAlreadyBet) {
		t.Fatalf("second bet err = %v", err)
	}
	if b.requests.Load() != before {
		t.Fatal("second bet reached the network")
	}
}

func TestPlaceBet_ConflictResyncsPositions(t *testing.T) {
	b := newBackend(t)
	b.handleStatus("POST /api/markets/m1/bet", http.StatusConflict, `{"error":"duplicate position"}`)
	var synced bool
	b.mux.HandleFunc("GET /api/users/u1/active", func(w http.ResponseWriter, _ *http.Request) {
		synced = true
		io.WriteString(w, `{"positions":[{"id":"p0","market_id":"m1","user_id":"u1","side":false,"amount":20}]}`)
	})

	notices := &recordingNotices{}
	w, _ := newWager(b, &recordingBus{}, WithNotices(notices))
	_, err := w.PlaceBet(context.Background(), alice, BetRequest{MarketID: "m1", Side: true, Amount: "5"})

	ae, ok := AsActionError(err)
	if !ok || ae.Kind != OutcomeConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
	if !strings.Contains(ae.Message, "already placed a bet") {
		t.Fatalf("message = %q", ae.Message)
	}
	if !synced {
		t.Fatal("positions were not re-synced")
	}
	held, _ := w.positions.HasPosition(context.Background(), "u1", "m1")
	if !held {
		t.Fatal("shadow does not reflect server position after resync")
	}
	if n := notices.last(); n.Title != "Bet failed" || n.Severity != domain.SeverityWarning {
		t.Fatalf("notice = %+v", n)
	}
}

func TestPlaceBet_InsufficientBalance(t *testing.T) {
	b := newBackend(t)
	b.handleStatus("POST /api/markets/m1/bet", http.StatusBadRequest, `{"error":"Insufficient balance","required":50,"current":12.5}`)
	w, _ := newWager(b, &recordingBus{})

	_, err := w.PlaceBet(context.Background(), alice, BetRequest{MarketID: "m1", Side: true, Amount: "50"})
	ae, ok := AsActionError(err)
	if !ok || ae.Kind != OutcomeBusiness {
		t.Fatalf("err = %v, want business", err)
	}
	if ae.Required == nil || *ae.Required != 50 || ae.Current == nil || *ae.Current != 12.5 {
		t.Fatalf("amounts = %v / %v", ae.Required, ae.Current)
	}
	if ae.Message != "Insufficient balance: need $50.00, have $12.50" {
		t.Fatalf("message = %q", ae.Message)
	}
}

func TestPlaceBet_RawServerError(t *testing.T) {
	b := newBackend(t)
	b.handleStatus("POST /api/markets/m1/bet", http.StatusBadRequest, `{"error":"Market is closed"}`)
	w, _ := newWager(b, &recordingBus{})

	_, err := w.PlaceBet(context.Background(), alice, BetRequest{MarketID: "m1", Side: true, Amount: "5"})
	ae, ok := AsActionError(err)
	if !ok || ae.Kind != OutcomeServer || ae.Message != "Market is closed" {
		t.Fatalf("err = %+v", err)
	}
}

func TestPlaceBet_TransportError(t *testing.T) {
	b := newBackend(t)
	w, _ := newWager(b, &recordingBus{})
	b.srv.Close()

	_, err := w.PlaceBet(context.Background(), alice, BetRequest{MarketID: "m1", Side: true, Amount: "5"})
	ae, ok := AsActionError(err)
	if !ok || ae.Kind != OutcomeTransport || ae.Message != MsgConnection {
		t.Fatalf("err = %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	good := map[string]float64{"50": 50, " 12.5 ": 12.5, "$1,000": 1000}
	for in, want := range good {
		got, err := ParseAmount(in)
		if err != nil || got != want {
			t.Errorf("ParseAmount(%q) = %v, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "$", "1e400", "twelve"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) accepted", in)
		}
	}
}
