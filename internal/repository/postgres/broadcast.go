package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/service/broadcast"
)

// BroadcastRepo implements broadcast.Repository against PostgreSQL.
type BroadcastRepo struct{ db *sql.DB }

// NewBroadcastRepo creates a Postgres-backed broadcast repository.
func NewBroadcastRepo(db *sql.DB) *BroadcastRepo { return &BroadcastRepo{db: db} }

const webhookCols = `id, app_name, title, owner, token, for_users, enabled, created_at`

func scanWebhook(row rowScanner) (*domain.Webhook, error) {
	w := &domain.Webhook{}
	err := row.Scan(&w.ID, &w.AppName, &w.Title, &w.Owner, &w.Token,
		&w.ForUsers, &w.Enabled, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *BroadcastRepo) InsertWebhook(ctx context.Context, w *domain.Webhook) (*domain.Webhook, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hive_webhooks
			(id, app_name, title, owner, token, for_users, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, w.ID, w.AppName, w.Title, w.Owner, w.Token, w.ForUsers, w.Enabled, w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	out := *w
	return &out, nil
}

func (r *BroadcastRepo) GetWebhook(ctx context.Context, id string) (*domain.Webhook, error) {
	w, err := scanWebhook(r.db.QueryRowContext(ctx, `
		SELECT `+webhookCols+` FROM hive_webhooks WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, broadcast.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (r *BroadcastRepo) GetWebhookByAppToken(ctx context.Context, appName, token string) (*domain.Webhook, error) {
	w, err := scanWebhook(r.db.QueryRowContext(ctx, `
		SELECT `+webhookCols+` FROM hive_webhooks WHERE app_name = $1 AND token = $2
	`, appName, token))
	if err == sql.ErrNoRows {
		return nil, broadcast.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve webhook: %w", err)
	}
	return w, nil
}

func (r *BroadcastRepo) ListWebhooks(ctx context.Context, owner string) ([]domain.Webhook, error) {
	q := `SELECT ` + webhookCols + ` FROM hive_webhooks`
	args := []interface{}{}
	if owner != "" {
		q += ` WHERE owner = $1`
		args = append(args, owner)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (r *BroadcastRepo) SetWebhookEnabled(ctx context.Context, id string, enabled bool) (*domain.Webhook, error) {
	w, err := scanWebhook(r.db.QueryRowContext(ctx, `
		UPDATE hive_webhooks SET enabled = $2 WHERE id = $1
		RETURNING `+webhookCols,
		id, enabled,
	))
	if err == sql.ErrNoRows {
		return nil, broadcast.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle webhook: %w", err)
	}
	return w, nil
}

func (r *BroadcastRepo) DeleteWebhook(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hive_webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return broadcast.ErrNotFound
	}
	return nil
}

const eventCols = `id, webhook_id, app_name, title, for_users, content_type,
	       body_text, body_json, received_at`

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(&e.ID, &e.WebhookID, &e.AppName, &e.Title, &e.ForUsers,
		&e.ContentType, &e.BodyText, &e.BodyJSON, &e.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *BroadcastRepo) InsertEvent(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	out, err := scanEvent(r.db.QueryRowContext(ctx, `
		INSERT INTO hive_events
			(webhook_id, app_name, title, for_users, content_type,
			 body_text, body_json, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+eventCols,
		e.WebhookID, e.AppName, e.Title, e.ForUsers, e.ContentType,
		e.BodyText, []byte(e.BodyJSON), e.ReceivedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return out, nil
}

func (r *BroadcastRepo) ListEvents(ctx context.Context, f broadcast.EventQuery) ([]domain.Event, error) {
	q := `SELECT ` + eventCols + ` FROM hive_events WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.App != "" {
		q += fmt.Sprintf(" AND app_name = $%d", idx)
		args = append(args, f.App)
		idx++
	}
	if f.SinceID > 0 {
		q += fmt.Sprintf(" AND id > $%d", idx)
		args = append(args, f.SinceID)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", idx)
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
