package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// Repository defines transaction ledger data access.
// Terminal transitions are enforced with conditional updates at the
// persistence layer, never check-then-write in application code.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByOrderID(ctx context.Context, merchantOrderID string) (*Transaction, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, providerReference string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reasonCode, reasonMsg string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates transaction repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	t.Status = StatusPending
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO transactions (
			id, merchant_order_id, user_id, credits, amount, currency,
			provider_amount, payment_method, status, provider_reference,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.MerchantOrderID,
		t.UserID,
		t.Credits,
		t.Amount,
		t.Currency,
		t.ProviderAmount,
		t.PaymentMethod,
		t.Status,
		t.ProviderReference,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateOrderID
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := `SELECT * FROM transactions WHERE id = $1`
	var t Transaction
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (r *repository) GetByOrderID(ctx context.Context, merchantOrderID string) (*Transaction, error) {
	query := `SELECT * FROM transactions WHERE merchant_order_id = $1`
	var t Transaction
	if err := r.db.GetContext(ctx, &t, query, merchantOrderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by order id: %w", err)
	}
	return &t, nil
}

// MarkCompleted transitions pending -> completed. The WHERE status = 'pending'
// clause closes the race between two concurrent deliveries of the same
// callback: only one update can win.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, providerReference string) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    provider_reference = COALESCE(NULLIF($3, ''), provider_reference),
		    updated_at = now()
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, id, StatusCompleted, providerReference, StatusPending)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return r.checkTransition(ctx, result, id)
}

// MarkFailed transitions pending -> failed, capturing the provider's reason
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reasonCode, reasonMsg string) error {
	query := `
		UPDATE transactions
		SET status = $2, fail_reason_code = $3, fail_reason_msg = $4, updated_at = now()
		WHERE id = $1 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, id, StatusFailed, reasonCode, reasonMsg, StatusPending)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return r.checkTransition(ctx, result, id)
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT * FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	transactions := make([]*Transaction, 0)
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

// checkTransition distinguishes "row is already terminal" from "row does not
// exist" after a zero-row conditional update.
func (r *repository) checkTransition(ctx context.Context, result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check transaction exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadySettled
}
