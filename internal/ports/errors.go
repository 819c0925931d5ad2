package ports

import (
	"errors"
	"fmt"
	"time"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Simulation Errors
	ErrValidationRejected = errors.New("trade rejected by risk validation")
	ErrStateViolation     = errors.New("position state violation")
	ErrInsufficientData   = errors.New("not enough data points")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)

// BarError ties a failure to the bar that triggered it.
type BarError struct {
	Index int
	Time  time.Time
	Err   error  // One of the sentinel errors above
	Msg   string // Human readable detail
}

func (e *BarError) Error() string {
	ts := "-"
	if !e.Time.IsZero() {
		ts = e.Time.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("bar %d (%s): %v: %s", e.Index, ts, e.Err, e.Msg)
}

func (e *BarError) Unwrap() error {
	return e.Err
}
