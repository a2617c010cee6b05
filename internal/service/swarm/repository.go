package swarm

import (
	"context"
	"time"

	"github.com/hivehq/hive/internal/domain"
)

// TaskQuery narrows a task listing. The planned sort is
// (status rank, sort_key asc, created_at asc); creation order otherwise.
type TaskQuery struct {
	ProjectID *string
	Status    *domain.TaskStatus
	Assignee  *string
	Sort      string // "planned" (default) or "created"
	Limit     int
}

// Repository is the storage contract for projects, tasks, the audit log,
// and recurring templates.
type Repository interface {
	InsertProject(ctx context.Context, p *domain.Project) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error)
	UpdateProject(ctx context.Context, p *domain.Project) (*domain.Project, error)
	SetProjectArchived(ctx context.Context, id string, archivedAt *time.Time) (*domain.Project, error)

	InsertTask(ctx context.Context, t *domain.Task) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	GetTasksByIDs(ctx context.Context, ids []string) ([]domain.Task, error)
	ListTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t *domain.Task) (*domain.Task, error)

	// LastSortKey returns the highest sort key in the status bucket, or
	// "" when the bucket is empty.
	LastSortKey(ctx context.Context, status domain.TaskStatus) (string, error)

	InsertTaskEvent(ctx context.Context, e *domain.TaskEvent) error
	ListTaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error)

	InsertTemplate(ctx context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id string) (*domain.RecurringTemplate, error)
	ListTemplates(ctx context.Context) ([]domain.RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
	SetTemplateEnabled(ctx context.Context, id string, enabled bool) (*domain.RecurringTemplate, error)
	SetTemplateLastRun(ctx context.Context, id string, at time.Time) error

	// CountRecurringInstances returns how many task instances exist for
	// the template, for repeat_count enforcement.
	CountRecurringInstances(ctx context.Context, templateID string) (int, error)

	// InsertRecurringInstance inserts the generated task unless the
	// (recurring_template_id, recurring_instance_at) pair already
	// exists, which makes generator runs safely repeatable.
	InsertRecurringInstance(ctx context.Context, t *domain.Task) (created bool, err error)
}
