package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/service"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// actionErrorBody is the JSON shape of a failed wager or admin action.
type actionErrorBody struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind"`
	Required *float64 `json:"required,omitempty"`
	Current  *float64 `json:"current,omitempty"`
}

// writeActionError maps a service failure to a status code. Errors that are
// not ActionErrors are logged and reported as 500.
func writeActionError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	ae, ok := service.AsActionError(err)
	if !ok {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, op+" failed")
		return
	}
	writeJSON(w, actionStatus(ae), actionErrorBody{
		Error:    ae.Message,
		Kind:     string(ae.Kind),
		Required: ae.Required,
		Current:  ae.Current,
	})
}

func actionStatus(ae *service.ActionError) int {
	switch {
	case errors.Is(ae, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(ae, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(ae, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	switch ae.Kind {
	case service.OutcomeValidation:
		return http.StatusBadRequest
	case service.OutcomeConflict:
		return http.StatusConflict
	case service.OutcomeBusiness:
		return http.StatusUnprocessableEntity
	case service.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// parseFilter extracts the profile tab filter from the query string.
// Absent parameters stay zero so an unfiltered request reaches the backend
// unfiltered. Limit is capped at 500.
func parseFilter(r *http.Request) domain.UserFilter {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.UserFilter{
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
