package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// memSignal is an in-process SignalBus shared by several bridges.
type memSignal struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (m *memSignal) Publish(_ context.Context, _ string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		s <- payload
	}
	return nil
}

func (m *memSignal) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []byte, 64)
	m.subs = append(m.subs, ch)
	return ch, nil
}

func (m *memSignal) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func TestBridgeForwardsBetweenProcesses(t *testing.T) {
	signal := &memSignal{}
	busA := NewBus(testLogger())
	busB := NewBus(testLogger())
	bridgeA := NewBridge(busA, signal, "", testLogger())
	bridgeB := NewBridge(busB, signal, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridgeA.Run(ctx) }()
	go func() { _ = bridgeB.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for signal.subscribers() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Let both bridges register their local subscriptions.
	time.Sleep(20 * time.Millisecond)

	onB, cancelB := busB.Subscribe(domain.EventMarketCancelled)
	defer cancelB()

	busA.Publish(ctx, domain.NewEvent(domain.EventMarketCancelled, "m42", nil))

	ev := recv(t, onB)
	if ev.MarketID != "m42" {
		t.Fatalf("market = %q", ev.MarketID)
	}
	if ev.Origin != bridgeA.Origin() {
		t.Fatalf("origin = %q, want %q", ev.Origin, bridgeA.Origin())
	}

	select {
	case extra := <-onB:
		t.Fatalf("event echoed back: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBridgeIgnoresOwnAndUnstampedEvents(t *testing.T) {
	signal := &memSignal{}
	bus := NewBus(testLogger())
	br := NewBridge(bus, signal, "", testLogger())

	local, cancel := bus.Subscribe()
	defer cancel()

	remote := make(chan []byte, 3)
	own, _ := json.Marshal(domain.Event{Name: domain.EventRecentBet, Origin: br.Origin()})
	unstamped, _ := json.Marshal(domain.Event{Name: domain.EventRecentBet})
	remote <- own
	remote <- unstamped
	remote <- []byte("not json")
	close(remote)

	if err := br.inbound(context.Background(), remote); err != nil {
		t.Fatalf("inbound: %v", err)
	}
	select {
	case ev := <-local:
		t.Fatalf("unexpected republished event %+v", ev)
	default:
	}
}
