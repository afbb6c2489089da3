// Package poller runs periodic refreshes. A Poller fetches once immediately,
// then on every interval; a tick that finds the previous run still in flight
// is skipped rather than queued. Heartbeat drives the one-second countdown
// repaint and performs no I/O of its own.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// Default refresh cadences.
const (
	DefaultGridInterval   = 45 * time.Second
	DefaultDetailInterval = 30 * time.Second
	DefaultAdminInterval  = 60 * time.Second
	DefaultHeartbeat      = time.Second
)

// Func is one refresh.
type Func func(ctx context.Context) error

// Poller is a single-flight periodic refresher.
type Poller struct {
	interval time.Duration
	fn       Func
	logger   *slog.Logger

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	wg      sync.WaitGroup
}

// New creates a Poller. A non-positive interval falls back to
// DefaultGridInterval.
func New(name string, interval time.Duration, fn Func, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultGridInterval
	}
	return &Poller{
		interval: interval,
		fn:       fn,
		logger:   logger.With(slog.String("component", "poller"), slog.String("poller", name)),
	}
}

// Run performs the initial fetch and then ticks until ctx is cancelled. It
// waits for an in-flight run to finish before returning.
func (p *Poller) Run(ctx context.Context) error {
	defer p.wg.Wait()

	p.kick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			runs, skipped := p.Stats()
			p.logger.Debug("stopped", slog.Int64("runs", runs), slog.Int64("skipped", skipped))
			return ctx.Err()
		case <-ticker.C:
			p.kick(ctx)
		}
	}
}

// kick starts a run in the background unless one is in flight.
func (p *Poller) kick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.logger.DebugContext(ctx, "tick skipped, previous run in flight")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		p.exec(ctx)
	}()
}

// Trigger runs a refresh now on the caller's goroutine. It returns
// domain.ErrInFlight without calling the refresh if one is already running.
func (p *Poller) Trigger(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return domain.ErrInFlight
	}
	defer p.running.Store(false)
	return p.exec(ctx)
}

func (p *Poller) exec(ctx context.Context) error {
	p.runs.Add(1)
	err := p.fn(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.WarnContext(ctx, "refresh failed", slog.String("error", err.Error()))
	}
	return err
}

// Stats reports how many refreshes ran and how many were skipped.
func (p *Poller) Stats() (runs, skipped int64) {
	return p.runs.Load(), p.skipped.Load()
}
