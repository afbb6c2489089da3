package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidAmount     = errors.New("invalid bet amount")
	ErrBelowMinimum      = errors.New("bet below minimum")
	ErrAboveMaximum      = errors.New("bet above maximum")
	ErrNoMarket          = errors.New("no active market")
	ErrAlreadyBet        = errors.New("position already held for market")
	ErrReasonTooShort    = errors.New("cancellation reason too short")
	ErrInvalidRenewal    = errors.New("invalid renewal parameters")
	ErrInvalidMarket     = errors.New("invalid market parameters")
	ErrNotConfirmed      = errors.New("action not confirmed")
	ErrInFlight          = errors.New("poll already in flight")
	ErrLockHeld          = errors.New("lock held by another holder")
	ErrUnavailable       = errors.New("backend unavailable")
)
