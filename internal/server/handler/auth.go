package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// maxRegisterBody bounds the identity provider user object.
const maxRegisterBody = 64 << 10

// Registrar creates the backend user record.
type Registrar interface {
	Register(ctx context.Context, providerUser json.RawMessage) error
}

// AuthHandler serves the login bootstrap endpoint.
type AuthHandler struct {
	auth   Registrar
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Registrar, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register forwards the identity provider's user object to the backend. The
// body may be the object itself or {"privyUser": {...}}.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRegisterBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var wrapped struct {
		PrivyUser json.RawMessage `json:"privyUser"`
	}
	user := json.RawMessage(body)
	if json.Unmarshal(body, &wrapped) == nil && len(wrapped.PrivyUser) > 0 {
		user = wrapped.PrivyUser
	}

	if !json.Valid(user) {
		writeError(w, http.StatusBadRequest, "provider user must be a JSON object")
		return
	}

	if err := h.auth.Register(r.Context(), user); err != nil {
		h.logger.WarnContext(r.Context(), "handler: register failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "registration failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}
