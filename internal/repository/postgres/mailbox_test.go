package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/service/mailbox"
)

var messageColNames = []string{
	"id", "recipient", "sender", "title", "body", "status", "urgent",
	"thread_id", "reply_to_message_id", "dedupe_key", "metadata",
	"response_waiting", "waiting_responder", "waiting_since",
	"created_at", "viewed_at",
}

func messageRow(id int64, recipient, sender, title string) *sqlmock.Rows {
	return sqlmock.NewRows(messageColNames).AddRow(
		id, recipient, sender, title, "", "unread", false,
		nil, nil, nil, nil,
		false, nil, nil,
		time.Now().UTC(), nil,
	)
}

func TestInsertDedupReturnsExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMailboxRepo(db)

	// Conflict: the INSERT ... RETURNING yields no row, then the
	// existing row is selected.
	mock.ExpectQuery("INSERT INTO hive_messages").
		WillReturnRows(sqlmock.NewRows(messageColNames))
	mock.ExpectQuery("SELECT (.+) FROM hive_messages").
		WithArgs("clio", "chris", "k1").
		WillReturnRows(messageRow(42, "clio", "chris", "ping"))

	key := "k1"
	m, created, err := repo.Insert(context.Background(), &domain.Message{
		Recipient: "clio", Sender: "chris", Title: "ping",
		Status: domain.MessageUnread, DedupeKey: &key,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created {
		t.Fatal("dedup hit must report created=false")
	}
	if m.ID != 42 {
		t.Fatalf("expected the existing row id 42, got %s", m.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetNotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewMailboxRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM hive_messages").
		WithArgs(int64(7), "clio").
		WillReturnRows(sqlmock.NewRows(messageColNames))

	_, err := repo.Get(context.Background(), "clio", 7)
	if !errors.Is(err, mailbox.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkReadFallsBackToCurrentRow(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewMailboxRepo(db)

	// The conditional UPDATE misses (already read), then the current
	// row is returned unchanged.
	mock.ExpectQuery("UPDATE hive_messages").
		WithArgs(int64(10), "clio").
		WillReturnRows(sqlmock.NewRows(messageColNames))
	read := messageRow(10, "clio", "chris", "seen")
	mock.ExpectQuery("SELECT (.+) FROM hive_messages").
		WithArgs(int64(10), "clio").
		WillReturnRows(read)

	m, changed, err := repo.MarkRead(context.Background(), "clio", 10)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if changed {
		t.Fatal("re-ack must report changed=false")
	}
	if m.ID != 10 {
		t.Fatalf("unexpected row: %+v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkReadBatchReturnsChangedIDs(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewMailboxRepo(db)

	mock.ExpectQuery("UPDATE hive_messages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)).AddRow(int64(11)))

	changed, err := repo.MarkReadBatch(context.Background(), "clio",
		[]domain.MessageID{10, 11, 12})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(changed) != 2 || changed[0] != 10 || changed[1] != 11 {
		t.Fatalf("unexpected changed set: %v", changed)
	}
}

func TestUnreadCounts(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewMailboxRepo(db)

	mock.ExpectQuery("SELECT recipient, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"recipient", "count"}).
			AddRow("clio", 3).AddRow("chris", 1))

	counts, err := repo.UnreadCounts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["clio"] != 3 || counts["chris"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
