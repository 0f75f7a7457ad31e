package ports

import (
	"errors"

	"niftyGreeksBot/internal/domain"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine Errors
	ErrMalformedSnapshot   = domain.ErrMalformedSnapshot
	ErrInvalidPolicy       = domain.ErrInvalidPolicy
	ErrOutOfOrder          = errors.New("snapshot timestamp out of order")
	ErrNoData              = errors.New("no market snapshots to process")
	ErrPositionAlreadyOpen = errors.New("a position is already open")
	ErrNoOpenPosition      = errors.New("no open position to close")

	// Feed Errors
	ErrFeedUnavailable = errors.New("market data feed is unavailable")
	ErrFeedExhausted   = errors.New("market data feed has no more snapshots")

	// Order Errors
	ErrOrderSubmitFailed = errors.New("failed to submit order intent")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
