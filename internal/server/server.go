package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/server/handler"
	"github.com/zoomiesmarket/zoomies/internal/server/middleware"
	"github.com/zoomiesmarket/zoomies/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// AdminTokenHash is a bcrypt hash guarding /api/admin. If empty, admin
	// rights come only from AdminUserIDs.
	AdminTokenHash string
	AdminUserIDs   []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Feed    *handler.FeedHandler
	Bets    *handler.BetHandler
	Profile *handler.ProfileHandler
	Admin   *handler.AdminHandler
	Auth    *handler.AuthHandler
}

// Server is the local HTTP + WebSocket API the UI talks to.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (identity, logging, CORS, admin token) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Viewer endpoints.
	mux.HandleFunc("GET /api/feed", handlers.Feed.Feed)
	mux.HandleFunc("GET /api/streams/{id}", handlers.Feed.Stream)
	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/users/{id}/{tab}", handlers.Profile.Tab)
	mux.HandleFunc("POST /api/users/{id}/export", handlers.Profile.Export)
	mux.HandleFunc("POST /api/auth/register", handlers.Auth.Register)

	// Admin endpoints.
	admin := middleware.AdminToken(cfg.AdminTokenHash)
	adminRoute := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, admin(fn))
	}
	adminRoute("GET /api/admin/markets", handlers.Admin.Markets)
	adminRoute("POST /api/admin/markets", handlers.Admin.CreateMarket)
	adminRoute("POST /api/admin/markets/{id}/resolve", handlers.Admin.Resolve)
	adminRoute("POST /api/admin/markets/{id}/cancel", handlers.Admin.Cancel)
	adminRoute("POST /api/admin/markets/{id}/renew", handlers.Admin.Renew)
	adminRoute("POST /api/admin/streams", handlers.Admin.CreateStream)
	adminRoute("DELETE /api/admin/streams/{id}", handlers.Admin.DeleteStream)
	adminRoute("GET /api/admin/audit", handlers.Admin.Audit)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Identity(cfg.AdminUserIDs)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler returns the root handler with its middleware chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
