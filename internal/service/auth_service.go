package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
)

// AuthService bootstraps the backend user record for an identity issued by
// the external identity provider.
type AuthService struct {
	api    *marketapi.Client
	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(api *marketapi.Client, logger *slog.Logger) *AuthService {
	return &AuthService{api: api, logger: logger.With(slog.String("component", "auth_service"))}
}

// Register forwards the provider's user object unchanged.
func (s *AuthService) Register(ctx context.Context, providerUser json.RawMessage) error {
	if len(providerUser) == 0 || !json.Valid(providerUser) {
		return fmt.Errorf("auth_service: register: provider user must be a JSON object")
	}
	if err := s.api.Register(ctx, providerUser); err != nil {
		return fmt.Errorf("auth_service: register: %w", err)
	}
	s.logger.InfoContext(ctx, "auth_service: registered backend user")
	return nil
}
