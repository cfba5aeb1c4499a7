package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the account profile holding the authoritative credit balance
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	DisplayName   string    `db:"display_name" json:"display_name"`
	CreditBalance int       `db:"credit_balance" json:"credit_balance"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
