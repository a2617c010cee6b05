package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/service/mailbox"
)

// MailboxRepo implements mailbox.Repository against PostgreSQL.
type MailboxRepo struct{ db *sql.DB }

// NewMailboxRepo creates a Postgres-backed mailbox repository.
func NewMailboxRepo(db *sql.DB) *MailboxRepo { return &MailboxRepo{db: db} }

const messageCols = `id, recipient, sender, title, body, status, urgent,
	       thread_id, reply_to_message_id, dedupe_key, metadata,
	       response_waiting, waiting_responder, waiting_since,
	       created_at, viewed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID, &m.Recipient, &m.Sender, &m.Title, &m.Body, &m.Status, &m.Urgent,
		&m.ThreadID, &m.ReplyToMessageID, &m.DedupeKey, &m.Metadata,
		&m.ResponseWaiting, &m.WaitingResponder, &m.WaitingSince,
		&m.CreatedAt, &m.ViewedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MailboxRepo) Insert(ctx context.Context, m *domain.Message) (*domain.Message, bool, error) {
	out, err := scanMessage(r.db.QueryRowContext(ctx, `
		INSERT INTO hive_messages
			(recipient, sender, title, body, status, urgent,
			 thread_id, reply_to_message_id, dedupe_key, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (recipient, sender, dedupe_key) WHERE dedupe_key IS NOT NULL
			DO NOTHING
		RETURNING `+messageCols,
		m.Recipient, m.Sender, m.Title, m.Body, m.Status, m.Urgent,
		m.ThreadID, m.ReplyToMessageID, m.DedupeKey, []byte(m.Metadata), m.CreatedAt,
	))
	if err == nil {
		return out, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	// Dedup hit: hand back the existing row.
	out, err = scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageCols+`
		FROM hive_messages
		WHERE recipient = $1 AND sender = $2 AND dedupe_key = $3
	`, m.Recipient, m.Sender, m.DedupeKey))
	if err != nil {
		return nil, false, fmt.Errorf("load deduped message: %w", err)
	}
	return out, false, nil
}

func (r *MailboxRepo) Get(ctx context.Context, recipient string, id domain.MessageID) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageCols+`
		FROM hive_messages
		WHERE id = $1 AND recipient = $2
	`, int64(id), recipient))
	if err == sql.ErrNoRows {
		return nil, mailbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MailboxRepo) GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageCols+`
		FROM hive_messages
		WHERE id = $1
	`, int64(id)))
	if err == sql.ErrNoRows {
		return nil, mailbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MailboxRepo) List(ctx context.Context, recipient string, f mailbox.ListQuery) ([]domain.Message, error) {
	q := `SELECT ` + messageCols + ` FROM hive_messages WHERE recipient = $1`
	args := []interface{}{recipient}
	idx := 2

	if f.Status != nil {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *f.Status)
		idx++
	}
	if f.AfterID != nil {
		q += fmt.Sprintf(" AND id > $%d", idx)
		args = append(args, int64(*f.AfterID))
		idx++
	}
	if f.MaxID != nil {
		q += fmt.Sprintf(" AND id < $%d", idx)
		args = append(args, int64(*f.MaxID))
		idx++
	}
	q += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", idx)
	args = append(args, f.Limit)

	return r.queryMessages(ctx, q, args...)
}

// escapeLike neutralizes LIKE metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (r *MailboxRepo) Search(ctx context.Context, recipient string, f mailbox.SearchQuery) ([]domain.Message, error) {
	q := `SELECT ` + messageCols + ` FROM hive_messages
		WHERE recipient = $1 AND (title ILIKE $2 OR body ILIKE $2)`
	args := []interface{}{recipient, "%" + escapeLike(f.Q) + "%"}
	idx := 3

	if f.From != nil {
		q += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		q += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *f.To)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", idx)
	args = append(args, f.Limit)

	return r.queryMessages(ctx, q, args...)
}

func (r *MailboxRepo) queryMessages(ctx context.Context, q string, args ...interface{}) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MailboxRepo) MarkRead(ctx context.Context, recipient string, id domain.MessageID) (*domain.Message, bool, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		UPDATE hive_messages
		SET status = 'read', viewed_at = NOW()
		WHERE id = $1 AND recipient = $2 AND status = 'unread'
		RETURNING `+messageCols,
		int64(id), recipient,
	))
	if err == nil {
		return m, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("ack message: %w", err)
	}

	// Already read, or not the viewer's. Get settles which.
	m, err = r.Get(ctx, recipient, id)
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

func (r *MailboxRepo) MarkReadBatch(ctx context.Context, recipient string, ids []domain.MessageID) ([]domain.MessageID, error) {
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	rows, err := r.db.QueryContext(ctx, `
		UPDATE hive_messages
		SET status = 'read', viewed_at = NOW()
		WHERE recipient = $1 AND status = 'unread' AND id = ANY($2)
		RETURNING id
	`, recipient, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("batch ack: %w", err)
	}
	defer rows.Close()

	var changed []domain.MessageID
	for rows.Next() {
		var id domain.MessageID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan acked id: %w", err)
		}
		changed = append(changed, id)
	}
	return changed, rows.Err()
}

func (r *MailboxRepo) SetWaiting(ctx context.Context, recipient string, id domain.MessageID, responder string, since time.Time) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		UPDATE hive_messages
		SET response_waiting = true, waiting_responder = $3, waiting_since = $4
		WHERE id = $1 AND recipient = $2
		RETURNING `+messageCols,
		int64(id), recipient, responder, since,
	))
	if err == sql.ErrNoRows {
		return nil, mailbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set waiting: %w", err)
	}
	return m, nil
}

func (r *MailboxRepo) ClearWaiting(ctx context.Context, id domain.MessageID, responder string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		UPDATE hive_messages
		SET response_waiting = false, waiting_responder = NULL, waiting_since = NULL
		WHERE id = $1 AND waiting_responder = $2
		RETURNING `+messageCols,
		int64(id), responder,
	))
	if err == sql.ErrNoRows {
		return nil, mailbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clear waiting: %w", err)
	}
	return m, nil
}

func (r *MailboxRepo) ListWaiting(ctx context.Context, responder string) ([]domain.Message, error) {
	return r.queryMessages(ctx, `
		SELECT `+messageCols+`
		FROM hive_messages
		WHERE response_waiting = true AND waiting_responder = $1
		ORDER BY waiting_since ASC
	`, responder)
}

func (r *MailboxRepo) ListWaitingOnOthers(ctx context.Context, sender string) ([]domain.Message, error) {
	return r.queryMessages(ctx, `
		SELECT `+messageCols+`
		FROM hive_messages
		WHERE sender = $1 AND response_waiting = true
		ORDER BY waiting_since ASC
	`, sender)
}

func (r *MailboxRepo) UnreadCounts(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, `
		SELECT recipient, COUNT(*)
		FROM hive_messages
		WHERE status = 'unread'
		GROUP BY recipient
	`)
}

func (r *MailboxRepo) WaitingCounts(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, `
		SELECT waiting_responder, COUNT(*)
		FROM hive_messages
		WHERE response_waiting = true AND waiting_responder IS NOT NULL
		GROUP BY waiting_responder
	`)
}

func (r *MailboxRepo) countsBy(ctx context.Context, q string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var user string
		var n int
		if err := rows.Scan(&user, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[user] = n
	}
	return counts, rows.Err()
}
