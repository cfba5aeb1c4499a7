package credit

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestApplyPurchase(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_ledger").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users").
		WithArgs(userID, 100).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ApplyPurchase(context.Background(), userID, 100, txID, "purchase via paytr"); err != nil {
		t.Fatalf("ApplyPurchase() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyPurchaseAlreadyApplied(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_ledger").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "credit_ledger_transaction_id_key"})
	mock.ExpectRollback()

	err := repo.ApplyPurchase(context.Background(), userID, 100, txID, "replay")
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("error = %v, want ErrAlreadyApplied", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyPurchaseProfileNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_ledger").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyPurchase(context.Background(), userID, 100, txID, "orphan")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("error = %v, want ErrProfileNotFound", err)
	}
}

func TestApplyPurchaseInvalidInput(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewRepository(db)

	if err := repo.ApplyPurchase(context.Background(), uuid.New(), 0, uuid.New(), "x"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("error = %v, want ErrInvalidAmount", err)
	}
	if err := repo.ApplyPurchase(context.Background(), uuid.New(), -5, uuid.New(), "x"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("error = %v, want ErrInvalidAmount", err)
	}
	if err := repo.ApplyPurchase(context.Background(), uuid.New(), 100, uuid.Nil, "x"); !errors.Is(err, ErrInternal) {
		t.Fatalf("error = %v, want ErrInternal for nil transaction id", err)
	}
}

func TestDeduct(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(userID, 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_ledger").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Deduct(context.Background(), userID, 30, "image generation"); err != nil {
		t.Fatalf("Deduct() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeductInsufficientCredits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	// Guarded update touches no row when the balance is too low
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Deduct(context.Background(), userID, 1000, "image generation")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("error = %v, want ErrInsufficientCredits", err)
	}
}

func TestGetBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	mock.ExpectQuery("SELECT credit_balance FROM users").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(250))

	balance, err := repo.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if balance != 250 {
		t.Fatalf("balance = %d, want 250", balance)
	}
}

func TestGetBalanceProfileNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	mock.ExpectQuery("SELECT credit_balance FROM users").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}))

	if _, err := repo.GetBalance(context.Background(), userID); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("error = %v, want ErrProfileNotFound", err)
	}
}

func TestListEntries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	mock.ExpectQuery("SELECT id, user_id, amount_delta").
		WithArgs(userID, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount_delta", "entry_type", "transaction_id", "description", "created_at"}))

	entries, err := repo.ListEntries(context.Background(), userID, Pagination{})
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if entries == nil {
		t.Fatal("expected empty slice, not nil")
	}
}
