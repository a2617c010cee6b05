package broadcast

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/domain"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
	tokenBytes        = 7 // 14 hex chars on the wire
)

// Service implements webhook management, ingest, and feed reads.
type Service struct {
	repo    Repository
	bus     *bus.Bus
	baseURL string
	now     func() time.Time
}

// NewService creates the broadcast service. baseURL is the externally
// reachable server root used to render ingest URLs.
func NewService(repo Repository, b *bus.Bus, baseURL string) *Service {
	return &Service{
		repo:    repo,
		bus:     b,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// WebhookInput carries the caller-controlled fields of a new webhook.
type WebhookInput struct {
	AppName string `json:"appName"`
	Title   string `json:"title"`
	For     string `json:"for"`
}

// CreateWebhook registers an ingest credential owned by the caller. The
// "swarm" app name is reserved for the task tracker's own feed entries.
func (s *Service) CreateWebhook(ctx context.Context, owner string, in WebhookInput) (*domain.Webhook, error) {
	if !domain.AppNamePattern.MatchString(in.AppName) {
		return nil, fmt.Errorf("%w: appName must match %s", ErrValidation, domain.AppNamePattern)
	}
	if in.AppName == domain.SwarmAppName {
		return nil, fmt.Errorf("%w: appName %q is reserved", ErrValidation, domain.SwarmAppName)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	w := &domain.Webhook{
		ID:        uuid.NewString(),
		AppName:   in.AppName,
		Title:     in.Title,
		Owner:     owner,
		Token:     token,
		ForUsers:  in.For,
		Enabled:   true,
		CreatedAt: s.now().UTC(),
	}
	return s.repo.InsertWebhook(ctx, w)
}

// IngestURL renders the canonical URL external producers POST to.
func (s *Service) IngestURL(w *domain.Webhook) string {
	return fmt.Sprintf("%s/api/ingest/%s/%s", s.baseURL, w.AppName, w.Token)
}

// ListWebhooks returns the viewer's webhooks; admins may request all.
func (s *Service) ListWebhooks(ctx context.Context, viewer string, admin, all bool) ([]domain.Webhook, error) {
	owner := viewer
	if admin && all {
		owner = ""
	}
	return s.repo.ListWebhooks(ctx, owner)
}

// GetWebhook returns one webhook. Rows owned by someone else read as not
// found for non-admins so tokens cannot be enumerated.
func (s *Service) GetWebhook(ctx context.Context, viewer string, admin bool, id string) (*domain.Webhook, error) {
	w, err := s.repo.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Owner != viewer && !admin {
		return nil, ErrNotFound
	}
	return w, nil
}

// SetEnabled toggles a webhook. Only the owner or an admin may mutate.
func (s *Service) SetEnabled(ctx context.Context, actor string, admin bool, id string, enabled bool) (*domain.Webhook, error) {
	if err := s.authorize(ctx, actor, admin, id); err != nil {
		return nil, err
	}
	return s.repo.SetWebhookEnabled(ctx, id, enabled)
}

// DeleteWebhook removes a webhook. Past events keep their snapshots.
func (s *Service) DeleteWebhook(ctx context.Context, actor string, admin bool, id string) error {
	if err := s.authorize(ctx, actor, admin, id); err != nil {
		return err
	}
	return s.repo.DeleteWebhook(ctx, id)
}

func (s *Service) authorize(ctx context.Context, actor string, admin bool, id string) error {
	w, err := s.repo.GetWebhook(ctx, id)
	if err != nil {
		return err
	}
	if w.Owner != actor && !admin {
		return fmt.Errorf("%w: owner or admin required", ErrForbidden)
	}
	return nil
}

// Ingest accepts one producer POST. Missing and disabled webhooks both
// read as not found so the endpoint cannot be used to probe tokens.
// JSON bodies that fail to parse are kept as text.
func (s *Service) Ingest(ctx context.Context, appName, token, contentType string, body []byte) (*domain.Event, error) {
	w, err := s.repo.GetWebhookByAppToken(ctx, appName, token)
	if err != nil {
		return nil, err
	}
	if !w.Enabled {
		return nil, ErrNotFound
	}

	e := &domain.Event{
		WebhookID:   &w.ID,
		AppName:     w.AppName,
		Title:       w.Title,
		ForUsers:    w.ForUsers,
		ContentType: contentType,
		ReceivedAt:  s.now().UTC(),
	}
	if isJSONContentType(contentType) && json.Valid(body) {
		e.BodyJSON = json.RawMessage(body)
	} else {
		text := string(body)
		e.BodyText = &text
	}

	out, err := s.repo.InsertEvent(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	s.bus.Publish(bus.TopicBuzz, *out)
	return out, nil
}

// ListEvents returns feed entries the viewer may see, newest first.
// Admins see everything; others only events whose for_users filter
// admits them.
func (s *Service) ListEvents(ctx context.Context, viewer string, admin bool, q EventQuery) ([]domain.Event, error) {
	if q.Limit <= 0 {
		q.Limit = defaultEventLimit
	}
	if q.Limit > maxEventLimit {
		q.Limit = maxEventLimit
	}
	events, err := s.repo.ListEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if admin {
		return events, nil
	}
	visible := events[:0]
	for _, e := range events {
		if e.VisibleTo(viewer) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// Recent returns the newest n events visible to the viewer, oldest
// first, for stream replay on connect.
func (s *Service) Recent(ctx context.Context, viewer string, admin bool, n int) ([]domain.Event, error) {
	events, err := s.ListEvents(ctx, viewer, admin, EventQuery{Limit: n})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// SwarmBody is the structured payload of a task-tracker feed entry.
type SwarmBody struct {
	EventType   string  `json:"eventType"`
	TaskID      string  `json:"taskId,omitempty"`
	ProjectID   string  `json:"projectId,omitempty"`
	Title       string  `json:"title"`
	Actor       string  `json:"actor"`
	Assignee    *string `json:"assignee,omitempty"`
	Status      string  `json:"status,omitempty"`
	DiffSummary string  `json:"diffSummary,omitempty"`
	DeepLink    string  `json:"deepLink"`
}

// RecordSwarmEvent mirrors a task-tracker mutation into the feed under
// the reserved app name. Failures are reported but never block the
// originating mutation.
func (s *Service) RecordSwarmEvent(ctx context.Context, title string, body SwarmBody) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal swarm body: %w", err)
	}
	e := &domain.Event{
		AppName:     domain.SwarmAppName,
		Title:       title,
		ContentType: "application/json",
		BodyJSON:    raw,
		ReceivedAt:  s.now().UTC(),
	}
	out, err := s.repo.InsertEvent(ctx, e)
	if err != nil {
		return fmt.Errorf("insert swarm event: %w", err)
	}
	s.bus.Publish(bus.TopicBuzz, *out)
	return nil
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
