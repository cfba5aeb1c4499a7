package payment

import "github.com/google/uuid"

// InitPaymentRequest is the client payload for creating a payment intent
type InitPaymentRequest struct {
	Credits  int    `json:"credits" validate:"required,gt=0"`
	Amount   string `json:"amount" validate:"required,amount"`
	Currency string `json:"currency" validate:"omitempty,currency"`
}

// InitPayTRResponse carries the iframe token for a created PayTR order
type InitPayTRResponse struct {
	MerchantOrderID string `json:"merchant_order_id"`
	Token           string `json:"token"`
	IframeURL       string `json:"iframe_url"`
}

// InitStripeResponse carries the client secret for a created payment intent
type InitStripeResponse struct {
	MerchantOrderID string `json:"merchant_order_id"`
	ClientSecret    string `json:"client_secret"`
}

// HistoryItem is one row of a user's payment history
type HistoryItem struct {
	ID              uuid.UUID `json:"id"`
	MerchantOrderID string    `json:"merchant_order_id"`
	Credits         int       `json:"credits"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentMethod   string    `json:"payment_method"`
	Status          string    `json:"status"`
	CreatedAt       string    `json:"created_at"`
}
