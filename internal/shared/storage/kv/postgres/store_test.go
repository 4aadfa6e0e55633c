package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"resumind-backend/internal/shared/storage/kv"
)

func TestStoreSetUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("INSERT INTO analysis_records").
		WithArgs("resume:abc", `{"id":"abc"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := &Store{DB: db}
	if err := store.Set(context.Background(), "resume:abc", `{"id":"abc"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT value FROM analysis_records").
		WithArgs("resume:abc").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"id":"abc"}`))
	mock.ExpectQuery("SELECT value FROM analysis_records").
		WithArgs("resume:missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	store := &Store{DB: db}
	got, err := store.Get(context.Background(), "resume:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"id":"abc"}` {
		t.Fatalf("unexpected value %q", got)
	}
	if _, err := store.Get(context.Background(), "resume:missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
