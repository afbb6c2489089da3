package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/events"
	"github.com/zoomiesmarket/zoomies/internal/server"
	"github.com/zoomiesmarket/zoomies/internal/server/handler"
	"github.com/zoomiesmarket/zoomies/internal/server/ws"
	"github.com/zoomiesmarket/zoomies/internal/service"
)

// services holds the view-model services shared by every mode.
type services struct {
	feed    *service.FeedService
	stream  *service.StreamService
	profile *service.ProfileService
	wagers  *service.WagerService
	admin   *service.AdminService
	auth    *service.AuthService
	export  *service.HistoryExporter // nil without object storage
}

func (a *App) buildServices(deps *Dependencies) *services {
	p := a.cfg.Polling
	profile := service.NewProfileService(deps.API, deps.Positions, a.logger)
	feed := service.NewFeedService(deps.API, profile, deps.Bus, p.Grid.Duration, a.cfg.User.ID, a.logger)
	profile.UsePrices(feed)
	stream := service.NewStreamService(deps.API, p.Detail.Duration,
		time.Duration(p.TrendWindowMinutes)*time.Minute, a.logger)

	wagers := service.NewWagerService(
		deps.API, deps.Positions, profile, feed, deps.Bus,
		service.BetLimits{Min: a.cfg.Betting.MinBet, Max: a.cfg.Betting.MaxBet},
		a.logger,
		service.WithNotices(deps.Notifier),
		service.WithRefreshers(feed),
		service.WithLoginPrompter(service.LoginPrompterFunc(func(ctx context.Context) {
			_ = deps.Notifier.Notify(ctx, "login", domain.Notice{
				Title:    "Login required",
				Message:  service.MsgLoginRequired,
				Severity: domain.SeverityWarning,
			})
		})),
	)

	svc := &services{
		feed:    feed,
		stream:  stream,
		profile: profile,
		wagers:  wagers,
		admin:   service.NewAdminService(deps.API, deps.Positions, deps.Bus, deps.Notifier, deps.AuditStore, p.Admin.Duration, a.logger),
		auth:    service.NewAuthService(deps.API, a.logger),
	}
	if deps.BlobWriter != nil {
		svc.export = service.NewHistoryExporter(profile, deps.BlobWriter, a.logger)
	}
	return svc
}

// WatchMode polls the grid and, when polling.stream_id is set, one stream's
// detail. Changes are logged; nothing is served.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)
	a.startPollers(ctx, g, deps, svc)
	a.startBridge(ctx, g, deps)
	a.logEvents(ctx, g, deps)

	return ignoreCanceled(g.Wait())
}

// ServerMode serves the local API and event stream, polling what the API
// reads from.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)

	g.Go(func() error { return svc.feed.Run(ctx, deps.Bus, a.cfg.Polling.Heartbeat.Duration) })
	g.Go(func() error { return svc.admin.Run(ctx) })
	a.startHTTPServer(ctx, g, deps, svc)

	return ignoreCanceled(g.Wait())
}

// FullMode runs every poller, the Redis bridge and the local API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)

	a.startPollers(ctx, g, deps, svc)
	g.Go(func() error { return svc.admin.Run(ctx) })
	a.startBridge(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, svc)

	return ignoreCanceled(g.Wait())
}

func (a *App) startPollers(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	g.Go(func() error { return svc.feed.Run(ctx, deps.Bus, a.cfg.Polling.Heartbeat.Duration) })

	if id := a.cfg.Polling.StreamID; id != "" {
		svc.stream.Focus(id)
		g.Go(func() error { return svc.stream.Run(ctx, deps.Bus) })
	}

	if userID := a.cfg.User.ID; userID != "" {
		g.Go(func() error {
			if err := svc.profile.Reconcile(ctx, userID); err != nil {
				a.logger.WarnContext(ctx, "initial position sync failed",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
}

// startBridge forwards bus events over Redis when configured.
func (a *App) startBridge(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.SignalBus == nil {
		return
	}
	bridge := events.NewBridge(deps.Bus, deps.SignalBus, a.cfg.Redis.EventChannel, a.logger)
	a.logger.InfoContext(ctx, "bridging events over redis",
		slog.String("channel", a.cfg.Redis.EventChannel),
		slog.String("origin", bridge.Origin()),
	)
	g.Go(func() error { return bridge.Run(ctx) })
}

// logEvents writes market events to the log for headless watching.
func (a *App) logEvents(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	ch, cancel := deps.Bus.Subscribe(
		domain.EventMarketResolved,
		domain.EventMarketCancelled,
		domain.EventMarketRenewed,
		domain.EventRecentBet,
	)
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-ch:
				if !ok {
					return nil
				}
				a.logger.InfoContext(ctx, "event",
					slog.String("type", ev.Name),
					slog.String("market_id", ev.MarketID),
					slog.String("payload", string(ev.Payload)),
				)
			}
		}
	})
}

// startHTTPServer adds the HTTP server and WebSocket hub to the given
// errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error { return hub.Run(ctx) })

	var exporter handler.HistoryExporter
	if svc.export != nil {
		exporter = svc.export
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		AdminTokenHash: a.cfg.Admin.TokenHash,
		AdminUserIDs:   a.cfg.Admin.UserIDs,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Feed:    handler.NewFeedHandler(svc.feed, svc.stream, a.logger),
		Bets:    handler.NewBetHandler(svc.wagers, a.logger),
		Profile: handler.NewProfileHandler(svc.profile, exporter, a.logger),
		Admin:   handler.NewAdminHandler(svc.admin, a.logger),
		Auth:    handler.NewAuthHandler(svc.auth, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCanceled treats a context cancellation as a clean stop.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
