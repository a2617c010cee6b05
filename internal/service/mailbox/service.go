package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Roster answers membership checks for the fixed user roster.
type Roster interface {
	InRoster(user string) bool
}

// Service implements the mailbox operations on top of a Repository and
// publishes live events on the bus.
type Service struct {
	repo   Repository
	bus    *bus.Bus
	roster Roster
	now    func() time.Time
}

// NewService creates the mailbox service.
func NewService(repo Repository, b *bus.Bus, roster Roster) *Service {
	return &Service{repo: repo, bus: b, roster: roster, now: time.Now}
}

// SendInput carries the caller-controlled fields of a new message.
type SendInput struct {
	Title            string           `json:"title"`
	Body             string           `json:"body"`
	Urgent           bool             `json:"urgent"`
	ThreadID         *string          `json:"threadId"`
	ReplyToMessageID *domain.MessageID `json:"replyToMessageId"`
	DedupeKey        *string          `json:"dedupeKey"`
	Metadata         json.RawMessage  `json:"metadata"`
}

// Send delivers a message to recipient's mailbox. When a dedupe key is
// supplied and a matching (recipient, sender, dedupeKey) row already
// exists, that row is returned and no event is published.
func (s *Service) Send(ctx context.Context, sender, recipient string, in SendInput) (*domain.Message, error) {
	if !s.roster.InRoster(recipient) {
		return nil, fmt.Errorf("%w: unknown recipient %q", ErrValidation, recipient)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	m := &domain.Message{
		Recipient:        recipient,
		Sender:           sender,
		Title:            in.Title,
		Body:             in.Body,
		Status:           domain.MessageUnread,
		Urgent:           in.Urgent,
		ThreadID:         in.ThreadID,
		ReplyToMessageID: in.ReplyToMessageID,
		DedupeKey:        in.DedupeKey,
		Metadata:         in.Metadata,
		CreatedAt:        s.now().UTC(),
	}

	out, created, err := s.repo.Insert(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if created {
		s.bus.Publish(bus.MailboxTopic(recipient), MessageEvent{
			Type:   "message",
			ID:     out.ID,
			Sender: out.Sender,
			Title:  out.Title,
			Urgent: out.Urgent,
		})
	}
	return out, nil
}

// ListOptions narrows List. Cursor and SinceID are mutually exclusive in
// practice; when both are set the cursor wins.
type ListOptions struct {
	Status  *domain.MessageStatus
	Limit   int
	Cursor  string
	SinceID *domain.MessageID
}

// List returns viewer's messages newest first, plus an opaque cursor for
// the next page when more rows may exist. Publishes an inbox_check so
// the viewer's other sessions can refresh.
func (s *Service) List(ctx context.Context, viewer string, opts ListOptions) ([]domain.Message, string, error) {
	limit := clampLimit(opts.Limit)
	q := ListQuery{Status: opts.Status, Limit: limit, AfterID: opts.SinceID}
	if opts.Cursor != "" {
		maxID, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad cursor", ErrValidation)
		}
		q.MaxID = &maxID
	}

	msgs, err := s.repo.List(ctx, viewer, q)
	if err != nil {
		return nil, "", fmt.Errorf("list messages: %w", err)
	}

	next := ""
	if len(msgs) == limit {
		next = encodeCursor(msgs[len(msgs)-1].ID)
	}
	s.publishInboxCheck(viewer, "list")
	return msgs, next, nil
}

// Get fetches one of viewer's messages without changing its read state.
func (s *Service) Get(ctx context.Context, viewer string, id domain.MessageID) (*domain.Message, error) {
	return s.repo.Get(ctx, viewer, id)
}

// Ack marks a message read. Re-acking a read message returns the row
// unchanged.
func (s *Service) Ack(ctx context.Context, viewer string, id domain.MessageID) (*domain.Message, error) {
	m, changed, err := s.repo.MarkRead(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishInboxCheck(viewer, "ack")
	}
	return m, nil
}

// BatchAckResult reports which ids were acked by this call. NotFound
// covers ids that are not viewer's, do not exist, or were already read.
type BatchAckResult struct {
	Success  []domain.MessageID `json:"success"`
	NotFound []domain.MessageID `json:"notFound"`
}

// BatchAck acks every id that belongs to viewer and is still unread.
func (s *Service) BatchAck(ctx context.Context, viewer string, ids []domain.MessageID) (*BatchAckResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids is required", ErrValidation)
	}
	changed, err := s.repo.MarkReadBatch(ctx, viewer, ids)
	if err != nil {
		return nil, fmt.Errorf("batch ack: %w", err)
	}

	acked := make(map[domain.MessageID]bool, len(changed))
	for _, id := range changed {
		acked[id] = true
	}
	res := &BatchAckResult{Success: []domain.MessageID{}, NotFound: []domain.MessageID{}}
	for _, id := range ids {
		if acked[id] {
			res.Success = append(res.Success, id)
		} else {
			res.NotFound = append(res.NotFound, id)
		}
	}
	s.publishInboxCheck(viewer, "ack")
	return res, nil
}

// ReplyInput carries the caller-controlled fields of a reply. Either
// Title or Body must be present.
type ReplyInput struct {
	Title     *string         `json:"title"`
	Body      string          `json:"body"`
	Urgent    bool            `json:"urgent"`
	DedupeKey *string         `json:"dedupeKey"`
	Metadata  json.RawMessage `json:"metadata"`
}

// Reply sends a response to one of viewer's messages. The reply goes to
// the original sender, inherits the original's thread (falling back to
// the original id), and defaults its title to "Re: <original title>".
func (s *Service) Reply(ctx context.Context, viewer string, originalID domain.MessageID, in ReplyInput) (*domain.Message, error) {
	if (in.Title == nil || strings.TrimSpace(*in.Title) == "") && strings.TrimSpace(in.Body) == "" {
		return nil, fmt.Errorf("%w: title or body is required", ErrValidation)
	}

	original, err := s.repo.Get(ctx, viewer, originalID)
	if err != nil {
		return nil, err
	}

	title := "Re: " + original.Title
	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		title = *in.Title
	}
	thread := original.ThreadKey()

	return s.Send(ctx, viewer, original.Sender, SendInput{
		Title:            title,
		Body:             in.Body,
		Urgent:           in.Urgent,
		ThreadID:         &thread,
		ReplyToMessageID: &originalID,
		DedupeKey:        in.DedupeKey,
		Metadata:         in.Metadata,
	})
}

// MarkWaiting records viewer's commitment to respond to the message.
// Only the recipient may set the flag; messages not owned by viewer are
// reported as not found.
func (s *Service) MarkWaiting(ctx context.Context, viewer string, id domain.MessageID) (*domain.Message, error) {
	if _, err := s.repo.Get(ctx, viewer, id); err != nil {
		return nil, err
	}
	m, err := s.repo.SetWaiting(ctx, viewer, id, viewer, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.bus.Publish(bus.MailboxTopic(m.Sender), WaitingEvent{
		Type:      "message_waiting",
		MessageID: m.ID,
		Responder: viewer,
	})
	return m, nil
}

// ClearWaiting releases the commitment. Only the current responder may
// clear; anyone else gets ErrForbidden even when they can see the row.
func (s *Service) ClearWaiting(ctx context.Context, viewer string, id domain.MessageID) (*domain.Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.WaitingResponder == nil || *m.WaitingResponder != viewer {
		return nil, fmt.Errorf("%w: only the waiting responder may clear", ErrForbidden)
	}
	out, err := s.repo.ClearWaiting(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(bus.MailboxTopic(out.Sender), WaitingEvent{
		Type:      "waiting_cleared",
		MessageID: out.ID,
		Responder: viewer,
	})
	return out, nil
}

// Search matches q against viewer's message titles and bodies.
func (s *Service) Search(ctx context.Context, viewer string, q SearchQuery) ([]domain.Message, error) {
	if strings.TrimSpace(q.Q) == "" {
		return nil, fmt.Errorf("%w: q is required", ErrValidation)
	}
	q.Limit = clampLimit(q.Limit)
	msgs, err := s.repo.Search(ctx, viewer, q)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	s.publishInboxCheck(viewer, "search")
	return msgs, nil
}

// Waiting lists the messages viewer has committed to answer.
func (s *Service) Waiting(ctx context.Context, viewer string) ([]domain.Message, error) {
	return s.repo.ListWaiting(ctx, viewer)
}

// WaitingOnOthers lists viewer's sent messages on which someone else
// holds an open commitment.
func (s *Service) WaitingOnOthers(ctx context.Context, viewer string) ([]domain.Message, error) {
	return s.repo.ListWaitingOnOthers(ctx, viewer)
}

// WaitingCounts returns open-commitment counts per responder.
func (s *Service) WaitingCounts(ctx context.Context) (map[string]int, error) {
	return s.repo.WaitingCounts(ctx)
}

// Counts supplies per-user unread and waiting counts. Shaped to plug
// into the presence tracker.
func (s *Service) Counts(ctx context.Context) (map[string]int, map[string]int, error) {
	unread, err := s.repo.UnreadCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	waiting, err := s.repo.WaitingCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return unread, waiting, nil
}

func (s *Service) publishInboxCheck(viewer, action string) {
	s.bus.Publish(bus.MailboxTopic(viewer), InboxCheckEvent{
		Type:    "inbox_check",
		Mailbox: viewer,
		Action:  action,
	})
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func encodeCursor(id domain.MessageID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

func decodeCursor(s string) (domain.MessageID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return domain.ParseMessageID(string(raw))
}
