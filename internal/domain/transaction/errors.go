package transaction

import "errors"

var (
	// ErrNotFound is returned when no transaction exists for the given key
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadySettled is returned when a terminal transaction is asked to
	// transition again. This is the idempotency guard for duplicate callbacks.
	ErrAlreadySettled = errors.New("transaction already settled")

	// ErrDuplicateOrderID is returned when a merchant order id is reused
	ErrDuplicateOrderID = errors.New("duplicate merchant order id")
)
