// Package errs defines the error taxonomy shared by the inventory and
// booking services. Callers classify failures with errors.Is so that
// wrapped context (train, date, counts) survives on the way up.
package errs

import "errors"

var (
	// ErrInsufficientSeats is a terminal business failure: the requested
	// class (or the aggregate) has fewer seats than asked for. Never retried.
	ErrInsufficientSeats = errors.New("insufficient seats")

	// ErrUnavailable is an infrastructure failure (lock contention, storage
	// down). The only retryable class.
	ErrUnavailable = errors.New("temporarily unavailable")

	// ErrNotFound covers missing tickets, trains and schedules.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is an ownership mismatch on a ticket mutation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is a ticket status guard violation.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidRequest covers malformed booking input.
	ErrInvalidRequest = errors.New("invalid request")
)
