package broadcast

import (
	"context"

	"github.com/hivehq/hive/internal/domain"
)

// EventQuery narrows an event listing. Events come back newest first.
type EventQuery struct {
	App     string
	Limit   int
	SinceID int64 // exclusive lower bound for tail-following
}

// Repository is the storage contract for webhooks and feed events.
type Repository interface {
	InsertWebhook(ctx context.Context, w *domain.Webhook) (*domain.Webhook, error)
	GetWebhook(ctx context.Context, id string) (*domain.Webhook, error)

	// GetWebhookByAppToken resolves the ingest credential. Missing rows
	// yield ErrNotFound; enabled state is checked by the caller.
	GetWebhookByAppToken(ctx context.Context, appName, token string) (*domain.Webhook, error)

	// ListWebhooks returns owner's webhooks, or every webhook when owner
	// is empty.
	ListWebhooks(ctx context.Context, owner string) ([]domain.Webhook, error)

	SetWebhookEnabled(ctx context.Context, id string, enabled bool) (*domain.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error

	InsertEvent(ctx context.Context, e *domain.Event) (*domain.Event, error)

	// ListEvents returns events newest first; for_users visibility is
	// applied by the service.
	ListEvents(ctx context.Context, q EventQuery) ([]domain.Event, error)
}
