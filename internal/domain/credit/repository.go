package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const pqUniqueViolation = "23505"

// Repository provides credit ledger and balance operations
type Repository interface {
	ApplyPurchase(ctx context.Context, userID uuid.UUID, amount int, transactionID uuid.UUID, description string) error
	Deduct(ctx context.Context, userID uuid.UUID, amount int, description string) error
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	ListEntries(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]Entry, error)
}

// CreditRepository is the sqlx-backed Repository implementation
type CreditRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// ApplyPurchase grants a settled transaction's credits exactly once. A single
// DB transaction inserts the applied-marker ledger row (UNIQUE transaction_id)
// and increments the balance, so a replayed settlement hits the unique
// constraint before any balance change.
func (r *CreditRepository) ApplyPurchase(ctx context.Context, userID uuid.UUID, amount int, transactionID uuid.UUID, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if transactionID == uuid.Nil {
		return fmt.Errorf("%w: transaction id is required", ErrInternal)
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx2, tx, userID, amount, EntryTypePurchase, &transactionID, description); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx2, `
		UPDATE users
		SET credit_balance = credit_balance + $2, updated_at = now()
		WHERE id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update user balance", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// Deduct spends credits. The balance condition lives in the UPDATE so two
// concurrent deductions can't overdraw.
func (r *CreditRepository) Deduct(ctx context.Context, userID uuid.UUID, amount int, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE users
		SET credit_balance = credit_balance - $2, updated_at = now()
		WHERE id = $1 AND credit_balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update user balance", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}

	if err := insertEntry(ctx2, tx, userID, -amount, EntryTypeDeduction, nil, description); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

func (r *CreditRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int
	err := r.db.GetContext(ctx2, &balance, `SELECT credit_balance FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("%w: get balance", ErrInternal)
	}

	return balance, nil
}

func (r *CreditRepository) ListEntries(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	entries := make([]Entry, 0)
	err := r.db.SelectContext(ctx2, &entries, `
		SELECT id, user_id, amount_delta, entry_type, transaction_id, description, created_at
		FROM credit_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries", ErrInternal)
	}

	return entries, nil
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amountDelta int, entryType EntryType, transactionID *uuid.UUID, description string) error {
	if strings.TrimSpace(description) == "" {
		description = "credit balance adjustment"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger (
			id, user_id, amount_delta, entry_type, transaction_id, description
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5
		)
	`, userID, amountDelta, entryType, transactionID, description)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("%w: insert ledger entry", ErrInternal)
	}

	return nil
}
