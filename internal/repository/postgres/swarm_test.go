package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hivehq/hive/internal/domain"
)

func TestLastSortKeyEmptyBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSwarmRepo(db)

	// MAX over an empty bucket comes back NULL.
	mock.ExpectQuery("SELECT MAX\\(sort_key\\)").
		WithArgs("queued").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	key, err := repo.LastSortKey(context.Background(), domain.TaskQueued)
	if err != nil {
		t.Fatalf("last sort key: %v", err)
	}
	if key != "" {
		t.Fatalf("empty bucket should yield empty key, got %q", key)
	}
}

func TestInsertRecurringInstanceConflict(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewSwarmRepo(db)

	// First insert lands, the identical second one hits ON CONFLICT.
	mock.ExpectExec("INSERT INTO hive_tasks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO hive_tasks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tplID := "tpl-1"
	at := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	task := &domain.Task{
		ID: "t-1", Title: "standup", CreatorUserID: "chris",
		Status: domain.TaskQueued, SortKey: "n",
		CreatedAt: at, UpdatedAt: at,
		RecurringTemplateID: &tplID, RecurringInstanceAt: &at,
	}

	created, err := repo.InsertRecurringInstance(context.Background(), task)
	if err != nil || !created {
		t.Fatalf("first insert should create: %v %v", created, err)
	}
	created, err = repo.InsertRecurringInstance(context.Background(), task)
	if err != nil {
		t.Fatalf("conflicting insert: %v", err)
	}
	if created {
		t.Fatal("conflicting insert must report created=false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
