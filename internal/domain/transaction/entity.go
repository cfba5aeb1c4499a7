package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents transaction status
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Method represents payment provider
type Method string

const (
	MethodStripe Method = "stripe"
	MethodPayTR  Method = "paytr"
)

// Transaction is a payment attempt in the ledger. One row per purchase
// attempt, keyed externally by MerchantOrderID. Rows are never deleted.
type Transaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	MerchantOrderID string          `db:"merchant_order_id" json:"merchant_order_id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	Credits         int             `db:"credits" json:"credits"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Currency        string          `db:"currency" json:"currency"`
	// ProviderAmount is the charged amount in the provider's minor units
	// (kuruş for PayTR, cents for Stripe), used for callback amount checks.
	ProviderAmount    int64     `db:"provider_amount" json:"provider_amount"`
	PaymentMethod     Method    `db:"payment_method" json:"payment_method"`
	Status            Status    `db:"status" json:"status"`
	ProviderReference string    `db:"provider_reference" json:"provider_reference,omitempty"`
	FailReasonCode    string    `db:"fail_reason_code" json:"fail_reason_code,omitempty"`
	FailReasonMsg     string    `db:"fail_reason_msg" json:"fail_reason_msg,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final status
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
