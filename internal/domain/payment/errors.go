package payment

import "errors"

var (
	// ErrInvalidPriceRatio is returned when a purchase request's price per
	// credit falls below the configured floor. Deliberately opaque: the
	// response must not reveal the floor to a tampering client.
	ErrInvalidPriceRatio = errors.New("invalid price for requested credits")

	// ErrWebhookVerification is returned when a webhook's authenticity
	// check fails. No ledger action is taken.
	ErrWebhookVerification = errors.New("webhook verification failed")

	// ErrAmountMismatch is returned when an authenticated callback reports a
	// charged amount different from the transaction's expected amount.
	ErrAmountMismatch = errors.New("callback amount mismatch")
)
