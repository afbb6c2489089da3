package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/zoomiesmarket/zoomies/internal/config"
	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func TestWire_LocalBackends(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, backend := range []string{config.CacheMemory, config.CacheFile} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Cache.Backend = backend
			cfg.Cache.FilePath = filepath.Join(t.TempDir(), "positions.json")

			deps, cleanup, err := Wire(context.Background(), &cfg, logger)
			if err != nil {
				t.Fatalf("Wire: %v", err)
			}
			defer cleanup()

			if deps.API == nil || deps.Bus == nil || deps.Positions == nil || deps.Notifier == nil {
				t.Fatalf("missing core dependency: %+v", deps)
			}
			if deps.SignalBus != nil || deps.AuditStore != nil || deps.BlobWriter != nil {
				t.Fatal("optional backends should stay unwired")
			}
			if len(deps.HealthChecks) != 0 {
				t.Fatalf("health checks = %d, want 0", len(deps.HealthChecks))
			}

			ctx := context.Background()
			pos := domain.Position{ID: "p1", UserID: "u1", MarketID: "m1", Side: true, Amount: 5}
			if err := deps.Positions.Append(ctx, pos); err != nil {
				t.Fatalf("Append: %v", err)
			}
			held, err := deps.Positions.HasPosition(ctx, "u1", "m1")
			if err != nil || !held {
				t.Fatalf("HasPosition = %v, %v", held, err)
			}
		})
	}
}

func TestWire_NoticesReachBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.Cache.Backend = config.CacheMemory

	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	ch, cancel := deps.Bus.Subscribe(domain.EventNotice)
	defer cancel()

	n := domain.Notice{Title: "Bet placed", Severity: domain.SeveritySuccess}
	if err := deps.Notifier.Notify(context.Background(), "bet", n); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	ev := <-ch
	if ev.Name != domain.EventNotice {
		t.Fatalf("event = %q", ev.Name)
	}
}
