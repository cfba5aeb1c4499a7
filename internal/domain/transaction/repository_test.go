package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
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

func TestCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx := &Transaction{
		MerchantOrderID: "MDabc",
		UserID:          uuid.New(),
		Credits:         100,
		Amount:          decimal.NewFromInt(500),
		Currency:        "TRY",
		ProviderAmount:  50000,
		PaymentMethod:   MethodPayTR,
	}
	if err := repo.Create(context.Background(), tx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tx.ID == uuid.Nil {
		t.Fatal("expected id to be generated")
	}
	if tx.Status != StatusPending {
		t.Fatalf("status = %s, want pending", tx.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDuplicateOrderID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_merchant_order_id_key"})

	tx := &Transaction{MerchantOrderID: "MDabc", UserID: uuid.New(), Credits: 100}
	if err := repo.Create(context.Background(), tx); !errors.Is(err, ErrDuplicateOrderID) {
		t.Fatalf("error = %v, want ErrDuplicateOrderID", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE transactions").
		WithArgs(id, StatusCompleted, "pi_123", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkCompleted(context.Background(), id, "pi_123"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkCompletedAlreadySettled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	id := uuid.New()

	// Conditional update touches no row, the row itself exists
	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := repo.MarkCompleted(context.Background(), id, "pi_123"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("error = %v, want ErrAlreadySettled", err)
	}
}

func TestMarkCompletedNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if err := repo.MarkCompleted(context.Background(), id, "pi_123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestMarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE transactions").
		WithArgs(id, StatusFailed, "51", "insufficient funds", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), id, "51", "insufficient funds"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkFailedAlreadySettled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := repo.MarkFailed(context.Background(), id, "51", "x"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("error = %v, want ErrAlreadySettled", err)
	}
}

func TestGetByOrderIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery("SELECT \\* FROM transactions").
		WithArgs("MDnope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByOrderID(context.Background(), "MDnope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
