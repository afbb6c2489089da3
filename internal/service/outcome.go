// Package service holds the view-model layer: stream grid, stream detail,
// wagers, admin resolution and profile tabs. Every outcome is terminal here.
// Errors become typed results or notices and are never left for a global
// handler.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
)

// OutcomeKind classifies why an action failed.
type OutcomeKind string

const (
	OutcomeValidation OutcomeKind = "validation"
	OutcomeConflict   OutcomeKind = "conflict"
	OutcomeBusiness   OutcomeKind = "business"
	OutcomeTransport  OutcomeKind = "transport"
	OutcomeNotFound   OutcomeKind = "not_found"
	OutcomeServer     OutcomeKind = "server"
)

// Messages shown to the user.
const (
	MsgLoginRequired  = "Please log in to place a bet"
	MsgInvalidAmount  = "Please enter a valid bet amount"
	MsgNoMarket       = "No active market to bet on"
	MsgAlreadyBet     = "You have already placed a bet on this market"
	MsgConnection     = "Connection error"
	MsgReasonTooShort = "Cancellation reason must be at least 5 characters"
)

// ActionError is the user-facing failure of a wager or admin action. It
// unwraps to the underlying domain sentinel or transport error.
type ActionError struct {
	Kind    OutcomeKind
	Message string
	// Required and Current are set for insufficient-balance rejections.
	Required *float64
	Current  *float64
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// AsActionError extracts an *ActionError from err.
func AsActionError(err error) (*ActionError, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func validationError(sentinel error, msg string) *ActionError {
	return &ActionError{Kind: OutcomeValidation, Message: msg, Err: sentinel}
}

// classify maps a backend error into an ActionError: conflict, business,
// transport or raw server error. conflictMsg replaces the server text for 409
// responses when set.
func classify(err error, conflictMsg string) *ActionError {
	if ae, ok := AsActionError(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		return &ActionError{Kind: OutcomeTransport, Message: MsgConnection, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &ActionError{Kind: OutcomeTransport, Message: MsgConnection, Err: err}
	case errors.Is(err, domain.ErrConflict):
		msg := conflictMsg
		if msg == "" {
			msg = serverMessage(err)
		}
		return &ActionError{Kind: OutcomeConflict, Message: msg, Err: err}
	case errors.Is(err, domain.ErrNotFound):
		return &ActionError{Kind: OutcomeNotFound, Message: serverMessage(err), Err: err}
	}

	if apiErr, ok := marketapi.AsAPIError(err); ok {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return &ActionError{
				Kind:     OutcomeBusiness,
				Message:  insufficientMessage(apiErr.Required, apiErr.Current),
				Required: apiErr.Required,
				Current:  apiErr.Current,
				Err:      err,
			}
		}
		return &ActionError{Kind: OutcomeServer, Message: serverMessage(err), Err: err}
	}
	return &ActionError{Kind: OutcomeServer, Message: err.Error(), Err: err}
}

func serverMessage(err error) string {
	if apiErr, ok := marketapi.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
