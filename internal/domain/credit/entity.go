package credit

import (
	"time"

	"github.com/google/uuid"
)

// EntryType defines supported credit ledger entry types.
type EntryType string

const (
	EntryTypePurchase   EntryType = "purchase"
	EntryTypeDeduction  EntryType = "deduction"
	EntryTypeAdminGrant EntryType = "admin_grant"
)

// Entry is a credit ledger row. Purchase entries carry the settled
// transaction id; its uniqueness is what makes the grant exactly-once.
type Entry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	AmountDelta   int        `db:"amount_delta" json:"amount_delta"`
	EntryType     EntryType  `db:"entry_type" json:"entry_type"`
	TransactionID *uuid.UUID `db:"transaction_id" json:"transaction_id,omitempty"`
	Description   string     `db:"description" json:"description"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}
