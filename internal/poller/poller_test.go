package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollerInitialFetchThenInterval(t *testing.T) {
	var calls atomic.Int32
	p := New("grid", 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}
	if n := calls.Load(); n < 3 {
		t.Fatalf("calls = %d, want at least 3", n)
	}
}

func TestPollerSkipsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls, concurrent, maxConcurrent atomic.Int32
	p := New("detail", 5*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		c := concurrent.Add(1)
		if c > maxConcurrent.Load() {
			maxConcurrent.Store(c)
		}
		defer concurrent.Add(-1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls while blocked = %d, want 1", n)
	}
	if _, skipped := p.Stats(); skipped == 0 {
		t.Fatal("expected skipped ticks")
	}
	if err := p.Trigger(ctx); !errors.Is(err, domain.ErrInFlight) {
		t.Fatalf("Trigger while busy = %v", err)
	}

	close(release)
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if maxConcurrent.Load() != 1 {
		t.Fatalf("max concurrent runs = %d", maxConcurrent.Load())
	}
	if calls.Load() < 2 {
		t.Fatalf("poller did not resume after release: calls = %d", calls.Load())
	}
}

func TestTriggerRunsSynchronously(t *testing.T) {
	boom := errors.New("boom")
	p := New("admin", time.Hour, func(context.Context) error { return boom }, testLogger())
	if err := p.Trigger(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Trigger = %v", err)
	}
	if runs, _ := p.Stats(); runs != 1 {
		t.Fatalf("runs = %d", runs)
	}
}

func TestHeartbeat(t *testing.T) {
	var beats atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	_ = Heartbeat(ctx, 10*time.Millisecond, func(time.Time) { beats.Add(1) })
	if n := beats.Load(); n < 3 {
		t.Fatalf("beats = %d", n)
	}
}

func TestFlight(t *testing.T) {
	f := NewFlight()
	inner := make(chan error, 1)
	err := f.Do("s1", func() error {
		inner <- f.Do("s1", func() error { return nil })
		return f.Do("s2", func() error { return nil })
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := <-inner; !errors.Is(got, domain.ErrInFlight) {
		t.Fatalf("nested Do = %v", got)
	}
	ran := false
	if err := f.Do("s1", func() error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("Do after release = %v, ran %v", err, ran)
	}
}
