package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/pkg/distlock"
	"github.com/hivehq/hive/internal/pkg/logger"
	"github.com/hivehq/hive/internal/service/broadcast"
)

// GeneratorConfig bounds a recurring-generator run.
type GeneratorConfig struct {
	Horizon   time.Duration // how far ahead instances are materialized
	MaxPerRun int           // per-template cap for one run
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.Horizon <= 0 {
		c.Horizon = 14 * 24 * time.Hour
	}
	if c.MaxPerRun <= 0 {
		c.MaxPerRun = 10
	}
	return c
}

// Service implements the task tracker on top of a Repository. Mutations
// are mirrored into the broadcast feed and published on the swarm topic.
type Service struct {
	repo  Repository
	bus   *bus.Bus
	feed  Feed
	lock  distlock.DistLock
	gen   GeneratorConfig
	now   func() time.Time
	newID func() string
}

// NewService creates the swarm service. feed and lock may be nil; the
// lock, when present, guards generator runs across processes.
func NewService(repo Repository, b *bus.Bus, feed Feed, lock distlock.DistLock, gen GeneratorConfig) *Service {
	return &Service{
		repo:  repo,
		bus:   b,
		feed:  feed,
		lock:  lock,
		gen:   gen.withDefaults(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// emit publishes the structured swarm event and mirrors it into the
// broadcast feed. Feed failures are logged, never propagated: the
// mutation already committed.
func (s *Service) emit(ctx context.Context, title string, body broadcast.SwarmBody) {
	s.bus.Publish(bus.TopicSwarm, Event{
		Type:      body.EventType,
		TaskID:    body.TaskID,
		ProjectID: body.ProjectID,
		Actor:     body.Actor,
	})
	if s.feed == nil {
		return
	}
	if err := s.feed.RecordSwarmEvent(ctx, title, body); err != nil {
		logger.Warn("swarm feed mirror failed", "err", err, "event", body.EventType)
	}
}

func (s *Service) audit(ctx context.Context, taskID, actor string, kind domain.TaskEventKind, before, after *domain.Task) {
	e := &domain.TaskEvent{
		TaskID:      taskID,
		ActorUserID: actor,
		Kind:        kind,
		CreatedAt:   s.now().UTC(),
	}
	if before != nil {
		e.BeforeState, _ = json.Marshal(before)
	}
	if after != nil {
		e.AfterState, _ = json.Marshal(after)
	}
	if err := s.repo.InsertTaskEvent(ctx, e); err != nil {
		logger.Warn("task audit write failed", "err", err, "task", taskID)
	}
}

// ---- Projects ----

// ProjectInput carries the fields of a new project.
type ProjectInput struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	Color               string `json:"color"`
	ProjectLeadUserID   string `json:"projectLeadUserId"`
	DeveloperLeadUserID string `json:"developerLeadUserId"`
	OneDevURL           string `json:"onedevUrl"`
	DokployDeployURL    string `json:"dokployDeployUrl"`
}

// CreateProject registers a new project.
func (s *Service) CreateProject(ctx context.Context, actor string, in ProjectInput) (*domain.Project, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !domain.ColorPattern.MatchString(in.Color) {
		return nil, fmt.Errorf("%w: color must be #RRGGBB", ErrValidation)
	}
	if in.ProjectLeadUserID == "" || in.DeveloperLeadUserID == "" {
		return nil, fmt.Errorf("%w: projectLeadUserId and developerLeadUserId are required", ErrValidation)
	}

	now := s.now().UTC()
	p := &domain.Project{
		ID:                  s.newID(),
		Title:               in.Title,
		Description:         in.Description,
		Color:               in.Color,
		ProjectLeadUserID:   in.ProjectLeadUserID,
		DeveloperLeadUserID: in.DeveloperLeadUserID,
		OneDevURL:           in.OneDevURL,
		DokployDeployURL:    in.DokployDeployURL,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	out, err := s.repo.InsertProject(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	s.emit(ctx, fmt.Sprintf("%s created project %q", actor, out.Title), broadcast.SwarmBody{
		EventType: EventProjectCreated,
		ProjectID: out.ID,
		Title:     out.Title,
		Actor:     actor,
		DeepLink:  "/swarm/projects/" + out.ID,
	})
	return out, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// ListProjects returns projects, hiding archived ones by default.
func (s *Service) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx, includeArchived)
}

// ProjectPatch is a partial project update; nil fields are unchanged.
type ProjectPatch struct {
	Title               *string `json:"title"`
	Description         *string `json:"description"`
	Color               *string `json:"color"`
	ProjectLeadUserID   *string `json:"projectLeadUserId"`
	DeveloperLeadUserID *string `json:"developerLeadUserId"`
	OneDevURL           *string `json:"onedevUrl"`
	DokployDeployURL    *string `json:"dokployDeployUrl"`
}

// UpdateProject applies a partial patch.
func (s *Service) UpdateProject(ctx context.Context, actor, id string, patch ProjectPatch) (*domain.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be blank", ErrValidation)
		}
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Color != nil {
		if !domain.ColorPattern.MatchString(*patch.Color) {
			return nil, fmt.Errorf("%w: color must be #RRGGBB", ErrValidation)
		}
		p.Color = *patch.Color
	}
	if patch.ProjectLeadUserID != nil {
		p.ProjectLeadUserID = *patch.ProjectLeadUserID
	}
	if patch.DeveloperLeadUserID != nil {
		p.DeveloperLeadUserID = *patch.DeveloperLeadUserID
	}
	if patch.OneDevURL != nil {
		p.OneDevURL = *patch.OneDevURL
	}
	if patch.DokployDeployURL != nil {
		p.DokployDeployURL = *patch.DokployDeployURL
	}
	p.UpdatedAt = s.now().UTC()

	out, err := s.repo.UpdateProject(ctx, p)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, fmt.Sprintf("%s updated project %q", actor, out.Title), broadcast.SwarmBody{
		EventType: EventProjectUpdated,
		ProjectID: out.ID,
		Title:     out.Title,
		Actor:     actor,
		DeepLink:  "/swarm/projects/" + out.ID,
	})
	return out, nil
}

// SetProjectArchived archives or unarchives a project.
func (s *Service) SetProjectArchived(ctx context.Context, actor, id string, archived bool) (*domain.Project, error) {
	var at *time.Time
	if archived {
		now := s.now().UTC()
		at = &now
	}
	out, err := s.repo.SetProjectArchived(ctx, id, at)
	if err != nil {
		return nil, err
	}
	verb := "unarchived"
	if archived {
		verb = "archived"
	}
	s.emit(ctx, fmt.Sprintf("%s %s project %q", actor, verb, out.Title), broadcast.SwarmBody{
		EventType:   EventProjectArchived,
		ProjectID:   out.ID,
		Title:       out.Title,
		Actor:       actor,
		DiffSummary: verb,
		DeepLink:    "/swarm/projects/" + out.ID,
	})
	return out, nil
}

// ---- Tasks ----

// TaskInput carries the fields of a new task.
type TaskInput struct {
	ProjectID              *string            `json:"projectId"`
	Title                  string             `json:"title"`
	Detail                 string             `json:"detail"`
	AssigneeUserID         *string            `json:"assigneeUserId"`
	Status                 *domain.TaskStatus `json:"status"`
	OnOrAfterAt            *time.Time         `json:"onOrAfterAt"`
	MustBeDoneAfterTaskID  *string            `json:"mustBeDoneAfterTaskId"`
	NextTaskID             *string            `json:"nextTaskId"`
	NextTaskAssigneeUserID *string            `json:"nextTaskAssigneeUserId"`
}

// CreateTask creates a task sorted to the end of its status bucket.
func (s *Service) CreateTask(ctx context.Context, actor string, in TaskInput) (*domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	status := domain.TaskQueued
	if in.Status != nil {
		if !domain.ValidTaskStatus(*in.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
		status = *in.Status
	}
	if in.MustBeDoneAfterTaskID != nil {
		if _, err := s.repo.GetTask(ctx, *in.MustBeDoneAfterTaskID); err != nil {
			return nil, fmt.Errorf("%w: mustBeDoneAfterTaskId does not exist", ErrValidation)
		}
	}

	last, err := s.repo.LastSortKey(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("last sort key: %w", err)
	}

	now := s.now().UTC()
	t := &domain.Task{
		ID:                     s.newID(),
		ProjectID:              in.ProjectID,
		Title:                  in.Title,
		Detail:                 in.Detail,
		CreatorUserID:          actor,
		AssigneeUserID:         in.AssigneeUserID,
		Status:                 status,
		OnOrAfterAt:            in.OnOrAfterAt,
		MustBeDoneAfterTaskID:  in.MustBeDoneAfterTaskID,
		SortKey:                KeyBetween(last, ""),
		NextTaskID:             in.NextTaskID,
		NextTaskAssigneeUserID: in.NextTaskAssigneeUserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if status == domain.TaskComplete {
		t.CompletedAt = &now
	}

	out, err := s.repo.InsertTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	s.audit(ctx, out.ID, actor, domain.TaskEventCreated, nil, out)
	s.emit(ctx, fmt.Sprintf("%s created %q", actor, out.Title), broadcast.SwarmBody{
		EventType: EventTaskCreated,
		TaskID:    out.ID,
		ProjectID: strOrEmpty(out.ProjectID),
		Title:     out.Title,
		Actor:     actor,
		Assignee:  out.AssigneeUserID,
		Status:    string(out.Status),
		DeepLink:  "/swarm/tasks/" + out.ID,
	})
	return s.enrich(ctx, out)
}

// GetTask returns one task with its derived blocked reason.
func (s *Service) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, t)
}

// ListTasks returns tasks with blocked reasons filled in.
func (s *Service) ListTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.enrichAll(ctx, tasks)
}

// TaskEvents returns the task's audit log.
func (s *Service) TaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	if _, err := s.repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListTaskEvents(ctx, taskID)
}

// TaskPatch is a partial task update; nil fields are unchanged.
type TaskPatch struct {
	ProjectID              *string    `json:"projectId"`
	Title                  *string    `json:"title"`
	Detail                 *string    `json:"detail"`
	AssigneeUserID         *string    `json:"assigneeUserId"`
	OnOrAfterAt            *time.Time `json:"onOrAfterAt"`
	MustBeDoneAfterTaskID  *string    `json:"mustBeDoneAfterTaskId"`
	NextTaskID             *string    `json:"nextTaskId"`
	NextTaskAssigneeUserID *string    `json:"nextTaskAssigneeUserId"`
}

// UpdateTask applies a partial patch. Assignment changes are mirrored
// with a distinct feed event type so clients can surface handoffs.
func (s *Service) UpdateTask(ctx context.Context, actor, id string, patch TaskPatch) (*domain.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *t

	assigned := false
	if patch.AssigneeUserID != nil {
		if t.AssigneeUserID == nil || *t.AssigneeUserID != *patch.AssigneeUserID {
			assigned = true
		}
		t.AssigneeUserID = patch.AssigneeUserID
	}
	if patch.ProjectID != nil {
		t.ProjectID = patch.ProjectID
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be blank", ErrValidation)
		}
		t.Title = *patch.Title
	}
	if patch.Detail != nil {
		t.Detail = *patch.Detail
	}
	if patch.OnOrAfterAt != nil {
		t.OnOrAfterAt = patch.OnOrAfterAt
	}
	if patch.MustBeDoneAfterTaskID != nil {
		if *patch.MustBeDoneAfterTaskID == id {
			return nil, fmt.Errorf("%w: a task cannot depend on itself", ErrValidation)
		}
		if _, err := s.repo.GetTask(ctx, *patch.MustBeDoneAfterTaskID); err != nil {
			return nil, fmt.Errorf("%w: mustBeDoneAfterTaskId does not exist", ErrValidation)
		}
		t.MustBeDoneAfterTaskID = patch.MustBeDoneAfterTaskID
	}
	if patch.NextTaskID != nil {
		t.NextTaskID = patch.NextTaskID
	}
	if patch.NextTaskAssigneeUserID != nil {
		t.NextTaskAssigneeUserID = patch.NextTaskAssigneeUserID
	}
	t.UpdatedAt = s.now().UTC()

	out, err := s.repo.UpdateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, out.ID, actor, domain.TaskEventUpdated, &before, out)

	eventType := EventTaskUpdated
	title := fmt.Sprintf("%s updated %q", actor, out.Title)
	if assigned {
		eventType = EventTaskAssigned
		title = fmt.Sprintf("%s assigned %q to %s", actor, out.Title, strOrEmpty(out.AssigneeUserID))
	}
	s.emit(ctx, title, broadcast.SwarmBody{
		EventType: eventType,
		TaskID:    out.ID,
		ProjectID: strOrEmpty(out.ProjectID),
		Title:     out.Title,
		Actor:     actor,
		Assignee:  out.AssigneeUserID,
		Status:    string(out.Status),
		DeepLink:  "/swarm/tasks/" + out.ID,
	})
	return s.enrich(ctx, out)
}

// Claim assigns the task to the caller. Claiming an already-assigned
// task reassigns it; claiming one's own task is a no-op.
func (s *Service) Claim(ctx context.Context, actor, id string) (*domain.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.AssigneeUserID != nil && *t.AssigneeUserID == actor {
		return s.enrich(ctx, t)
	}
	before := *t
	t.AssigneeUserID = &actor
	t.UpdatedAt = s.now().UTC()

	out, err := s.repo.UpdateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, out.ID, actor, domain.TaskEventClaimed, &before, out)
	s.emit(ctx, fmt.Sprintf("%s claimed %q", actor, out.Title), broadcast.SwarmBody{
		EventType: EventTaskAssigned,
		TaskID:    out.ID,
		ProjectID: strOrEmpty(out.ProjectID),
		Title:     out.Title,
		Actor:     actor,
		Assignee:  out.AssigneeUserID,
		Status:    string(out.Status),
		DeepLink:  "/swarm/tasks/" + out.ID,
	})
	return s.enrich(ctx, out)
}

// startLikeStatuses are refused while the task is blocked.
var startLikeStatuses = map[domain.TaskStatus]bool{
	domain.TaskInProgress: true,
	domain.TaskReview:     true,
	domain.TaskComplete:   true,
}

// SetStatus moves the task through the state machine. Transitions are
// free-form except that blocked tasks cannot enter active states.
// Completion stamps completed_at; leaving complete clears it.
func (s *Service) SetStatus(ctx context.Context, actor, id string, status domain.TaskStatus) (*domain.Task, error) {
	if !domain.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if startLikeStatuses[status] {
		reason, err := s.blockedReason(ctx, t)
		if err != nil {
			return nil, err
		}
		if reason != nil {
			return nil, fmt.Errorf("%w: blocked by: %s", ErrValidation, *reason)
		}
	}

	before := *t
	now := s.now().UTC()
	t.Status = status
	if status == domain.TaskComplete {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now

	out, err := s.repo.UpdateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, out.ID, actor, domain.TaskEventStatusChanged, &before, out)
	s.emit(ctx, fmt.Sprintf("%s changed %q to %s", actor, out.Title, out.Status), broadcast.SwarmBody{
		EventType:   EventTaskStatus,
		TaskID:      out.ID,
		ProjectID:   strOrEmpty(out.ProjectID),
		Title:       out.Title,
		Actor:       actor,
		Assignee:    out.AssigneeUserID,
		Status:      string(out.Status),
		DiffSummary: fmt.Sprintf("%s → %s", before.Status, out.Status),
		DeepLink:    "/swarm/tasks/" + out.ID,
	})
	return s.enrich(ctx, out)
}

// Reorder moves the task immediately before beforeTaskID within its
// status bucket, or to the end of the bucket when beforeTaskID is nil.
// Neighbors keep their keys. Reordering to the current position is a
// no-op.
func (s *Service) Reorder(ctx context.Context, actor, id string, beforeTaskID *string) (*domain.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	bucket, err := s.repo.ListTasks(ctx, TaskQuery{Status: &t.Status, Sort: "planned"})
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	// The moving task takes no part in bounding its own new position.
	peers := bucket[:0]
	for _, b := range bucket {
		if b.ID != id {
			peers = append(peers, b)
		}
	}

	var lower, upper string // "" = open bound
	if beforeTaskID == nil {
		if len(peers) > 0 {
			lower = peers[len(peers)-1].SortKey
		}
	} else {
		if *beforeTaskID == id {
			return s.enrich(ctx, t)
		}
		idx := -1
		for i := range peers {
			if peers[i].ID == *beforeTaskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: beforeTaskId is not a task in the same status", ErrValidation)
		}
		upper = peers[idx].SortKey
		if idx > 0 {
			lower = peers[idx-1].SortKey
		}
	}

	// Already in place: nothing to write.
	if t.SortKey > lower && (upper == "" || t.SortKey < upper) {
		return s.enrich(ctx, t)
	}

	before := *t
	t.SortKey = KeyBetween(lower, upper)
	t.UpdatedAt = s.now().UTC()

	out, err := s.repo.UpdateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, out.ID, actor, domain.TaskEventReordered, &before, out)
	s.emit(ctx, fmt.Sprintf("%s reordered %q", actor, out.Title), broadcast.SwarmBody{
		EventType: EventTaskReordered,
		TaskID:    out.ID,
		ProjectID: strOrEmpty(out.ProjectID),
		Title:     out.Title,
		Actor:     actor,
		Status:    string(out.Status),
		DeepLink:  "/swarm/tasks/" + out.ID,
	})
	return s.enrich(ctx, out)
}

// blockedReason derives why the task cannot start, or nil.
func (s *Service) blockedReason(ctx context.Context, t *domain.Task) (*string, error) {
	now := s.now().UTC()
	if t.OnOrAfterAt != nil && t.OnOrAfterAt.After(now) {
		r := "not-before " + t.OnOrAfterAt.UTC().Format(time.RFC3339)
		return &r, nil
	}
	if t.MustBeDoneAfterTaskID != nil {
		pred, err := s.repo.GetTask(ctx, *t.MustBeDoneAfterTaskID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil // dangling predecessor does not block
		}
		if err != nil {
			return nil, err
		}
		if pred.Status != domain.TaskComplete {
			r := "waiting on: " + pred.Title
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Service) enrich(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	reason, err := s.blockedReason(ctx, t)
	if err != nil {
		return nil, err
	}
	t.BlockedReason = reason
	return t, nil
}

// enrichAll fills blocked reasons for a listing, batching predecessor
// lookups.
func (s *Service) enrichAll(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	var predIDs []string
	seen := map[string]bool{}
	for i := range tasks {
		if id := tasks[i].MustBeDoneAfterTaskID; id != nil && !seen[*id] {
			seen[*id] = true
			predIDs = append(predIDs, *id)
		}
	}
	preds := map[string]domain.Task{}
	if len(predIDs) > 0 {
		rows, err := s.repo.GetTasksByIDs(ctx, predIDs)
		if err != nil {
			return nil, fmt.Errorf("load predecessors: %w", err)
		}
		for _, r := range rows {
			preds[r.ID] = r
		}
	}

	now := s.now().UTC()
	for i := range tasks {
		t := &tasks[i]
		if t.OnOrAfterAt != nil && t.OnOrAfterAt.After(now) {
			r := "not-before " + t.OnOrAfterAt.UTC().Format(time.RFC3339)
			t.BlockedReason = &r
			continue
		}
		if t.MustBeDoneAfterTaskID != nil {
			if pred, ok := preds[*t.MustBeDoneAfterTaskID]; ok && pred.Status != domain.TaskComplete {
				r := "waiting on: " + pred.Title
				t.BlockedReason = &r
			}
		}
	}
	return tasks, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
