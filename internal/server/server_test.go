package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/zoomiesmarket/zoomies/internal/server/handler"
)

func TestServer_AdminRoutesRequireToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := NewServer(Config{Port: 0, AdminTokenHash: string(hash)}, Handlers{
		Health:  handler.NewHealthHandler(nil, logger),
		Feed:    handler.NewFeedHandler(nil, nil, logger),
		Bets:    handler.NewBetHandler(nil, logger),
		Profile: handler.NewProfileHandler(nil, nil, logger),
		Admin:   handler.NewAdminHandler(nil, logger),
		Auth:    handler.NewAuthHandler(nil, logger),
	}, nil, logger)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/api/admin/audit", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/admin/markets/m1/resolve", "wrong", http.StatusUnauthorized},
		{http.MethodDelete, "/api/admin/streams/s1", "", http.StatusUnauthorized},
		{http.MethodPut, "/api/bets", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s %s: missing request id", tc.method, tc.path)
		}
	}
}
