package credit

import "errors"

var (
	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrProfileNotFound is returned when the user profile doesn't exist
	ErrProfileNotFound = errors.New("user profile not found")

	// ErrAlreadyApplied is returned when a transaction's credits were granted before
	ErrAlreadyApplied = errors.New("transaction credits already applied")

	// ErrInsufficientCredits is returned when the balance can't cover a deduction
	ErrInsufficientCredits = errors.New("insufficient credits")

	ErrInternal = errors.New("internal error")
)
