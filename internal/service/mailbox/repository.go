package mailbox

import (
	"context"
	"time"

	"github.com/hivehq/hive/internal/domain"
)

// ListQuery narrows a mailbox listing. Zero values mean "no filter".
type ListQuery struct {
	Status  *domain.MessageStatus
	Limit   int
	AfterID *domain.MessageID // exclusive lower bound (sinceId catch-up)
	MaxID   *domain.MessageID // exclusive upper bound (pagination cursor)
}

// SearchQuery is a case-insensitive substring search over title and body.
type SearchQuery struct {
	Q     string
	From  *time.Time
	To    *time.Time
	Limit int
}

// Repository is the storage contract for mailbox messages. Implementations
// return the package sentinel errors; anything else is treated as an
// internal failure by callers.
type Repository interface {
	// Insert persists a new message. When m.DedupeKey is set and a row
	// already exists for (recipient, sender, dedupe_key), the existing
	// row is returned with created=false and nothing is written.
	Insert(ctx context.Context, m *domain.Message) (out *domain.Message, created bool, err error)

	// Get returns the message only when it belongs to recipient.
	Get(ctx context.Context, recipient string, id domain.MessageID) (*domain.Message, error)

	// GetByID returns the message regardless of ownership. Used for
	// permission checks that must distinguish 403 from 404.
	GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error)

	// List returns recipient's messages ordered by id descending.
	List(ctx context.Context, recipient string, q ListQuery) ([]domain.Message, error)

	// Search matches q against title and body for recipient's messages,
	// newest first.
	Search(ctx context.Context, recipient string, q SearchQuery) ([]domain.Message, error)

	// MarkRead sets status=read and viewed_at on first ack. Re-acking a
	// read row returns it unchanged with changed=false. Rows not owned
	// by recipient yield ErrNotFound.
	MarkRead(ctx context.Context, recipient string, id domain.MessageID) (m *domain.Message, changed bool, err error)

	// MarkReadBatch acks every listed id that belongs to recipient and
	// is still unread, in one statement. Returns the ids it changed.
	MarkReadBatch(ctx context.Context, recipient string, ids []domain.MessageID) ([]domain.MessageID, error)

	// SetWaiting stamps the waiting triple on recipient's message.
	SetWaiting(ctx context.Context, recipient string, id domain.MessageID, responder string, since time.Time) (*domain.Message, error)

	// ClearWaiting nulls the waiting triple; only rows whose current
	// waiting_responder equals responder match.
	ClearWaiting(ctx context.Context, id domain.MessageID, responder string) (*domain.Message, error)

	// ListWaiting returns messages the user has committed to answer.
	ListWaiting(ctx context.Context, responder string) ([]domain.Message, error)

	// ListWaitingOnOthers returns messages the user sent on which someone
	// else holds an open waiting commitment.
	ListWaitingOnOthers(ctx context.Context, sender string) ([]domain.Message, error)

	// UnreadCounts returns unread message counts keyed by recipient.
	UnreadCounts(ctx context.Context) (map[string]int, error)

	// WaitingCounts returns open waiting-commitment counts keyed by
	// responder.
	WaitingCounts(ctx context.Context) (map[string]int, error)
}
