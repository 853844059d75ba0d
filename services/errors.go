package services

import "errors"

// Sentinel errors surfaced to handlers. Anything not matching one of these
// is treated as a transient store failure and reported as retryable without
// internal detail.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientTickets = errors.New("insufficient gacha tickets")
	ErrInvalidTicketCount  = errors.New("ticket count must be between 1 and 10")
	ErrInvalidAmount       = errors.New("experience amount must not be negative")
)
