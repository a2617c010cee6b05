package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/service/swarm"
)

// SwarmRepo implements swarm.Repository against PostgreSQL.
type SwarmRepo struct{ db *sql.DB }

// NewSwarmRepo creates a Postgres-backed swarm repository.
func NewSwarmRepo(db *sql.DB) *SwarmRepo { return &SwarmRepo{db: db} }

// ---- Projects ----

const projectCols = `id, title, description, color, project_lead_user_id,
	       developer_lead_user_id, onedev_url, dokploy_deploy_url,
	       archived_at, created_at, updated_at`

func scanProject(row rowScanner) (*domain.Project, error) {
	p := &domain.Project{}
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Color,
		&p.ProjectLeadUserID, &p.DeveloperLeadUserID,
		&p.OneDevURL, &p.DokployDeployURL,
		&p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SwarmRepo) InsertProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hive_projects
			(id, title, description, color, project_lead_user_id,
			 developer_lead_user_id, onedev_url, dokploy_deploy_url,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.Title, p.Description, p.Color, p.ProjectLeadUserID,
		p.DeveloperLeadUserID, p.OneDevURL, p.DokployDeployURL,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	out := *p
	return &out, nil
}

func (r *SwarmRepo) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `
		SELECT `+projectCols+` FROM hive_projects WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *SwarmRepo) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	q := `SELECT ` + projectCols + ` FROM hive_projects`
	if !includeArchived {
		q += ` WHERE archived_at IS NULL`
	}
	q += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *SwarmRepo) UpdateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	out, err := scanProject(r.db.QueryRowContext(ctx, `
		UPDATE hive_projects
		SET title = $2, description = $3, color = $4,
		    project_lead_user_id = $5, developer_lead_user_id = $6,
		    onedev_url = $7, dokploy_deploy_url = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+projectCols,
		p.ID, p.Title, p.Description, p.Color,
		p.ProjectLeadUserID, p.DeveloperLeadUserID,
		p.OneDevURL, p.DokployDeployURL, p.UpdatedAt,
	))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return out, nil
}

func (r *SwarmRepo) SetProjectArchived(ctx context.Context, id string, archivedAt *time.Time) (*domain.Project, error) {
	out, err := scanProject(r.db.QueryRowContext(ctx, `
		UPDATE hive_projects SET archived_at = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+projectCols,
		id, archivedAt,
	))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive project: %w", err)
	}
	return out, nil
}

// ---- Tasks ----

const taskCols = `id, project_id, title, detail, creator_user_id, assignee_user_id,
	       status, on_or_after_at, must_be_done_after_task_id, sort_key,
	       next_task_id, next_task_assignee_user_id,
	       created_at, updated_at, completed_at,
	       recurring_template_id, recurring_instance_at`

// plannedOrder ranks active work first; within a status, sort_key then age.
const plannedOrder = ` ORDER BY CASE status
		WHEN 'in_progress' THEN 1
		WHEN 'review' THEN 2
		WHEN 'ready' THEN 3
		WHEN 'queued' THEN 4
		WHEN 'holding' THEN 5
		WHEN 'complete' THEN 6
		ELSE 7 END, sort_key ASC, created_at ASC`

func scanTask(row rowScanner) (*domain.Task, error) {
	t := &domain.Task{}
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Detail,
		&t.CreatorUserID, &t.AssigneeUserID,
		&t.Status, &t.OnOrAfterAt, &t.MustBeDoneAfterTaskID, &t.SortKey,
		&t.NextTaskID, &t.NextTaskAssigneeUserID,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
		&t.RecurringTemplateID, &t.RecurringInstanceAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func taskArgs(t *domain.Task) []interface{} {
	return []interface{}{
		t.ID, t.ProjectID, t.Title, t.Detail, t.CreatorUserID, t.AssigneeUserID,
		t.Status, t.OnOrAfterAt, t.MustBeDoneAfterTaskID, t.SortKey,
		t.NextTaskID, t.NextTaskAssigneeUserID,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt,
		t.RecurringTemplateID, t.RecurringInstanceAt,
	}
}

const taskInsert = `
	INSERT INTO hive_tasks
		(id, project_id, title, detail, creator_user_id, assignee_user_id,
		 status, on_or_after_at, must_be_done_after_task_id, sort_key,
		 next_task_id, next_task_assignee_user_id,
		 created_at, updated_at, completed_at,
		 recurring_template_id, recurring_instance_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func (r *SwarmRepo) InsertTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if _, err := r.db.ExecContext(ctx, taskInsert, taskArgs(t)...); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	out := *t
	return &out, nil
}

func (r *SwarmRepo) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `
		SELECT `+taskCols+` FROM hive_tasks WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *SwarmRepo) GetTasksByIDs(ctx context.Context, ids []string) ([]domain.Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskCols+` FROM hive_tasks WHERE id = ANY($1)
	`, pq.Array(ids))
}

func (r *SwarmRepo) ListTasks(ctx context.Context, f swarm.TaskQuery) ([]domain.Task, error) {
	q := `SELECT ` + taskCols + ` FROM hive_tasks WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.ProjectID != nil {
		q += fmt.Sprintf(" AND project_id = $%d", idx)
		args = append(args, *f.ProjectID)
		idx++
	}
	if f.Status != nil {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *f.Status)
		idx++
	}
	if f.Assignee != nil {
		q += fmt.Sprintf(" AND assignee_user_id = $%d", idx)
		args = append(args, *f.Assignee)
		idx++
	}
	if f.Sort == "created" {
		q += ` ORDER BY created_at DESC`
	} else {
		q += plannedOrder
	}
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, f.Limit)
	}

	return r.queryTasks(ctx, q, args...)
}

func (r *SwarmRepo) queryTasks(ctx context.Context, q string, args ...interface{}) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SwarmRepo) UpdateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	out, err := scanTask(r.db.QueryRowContext(ctx, `
		UPDATE hive_tasks
		SET project_id = $2, title = $3, detail = $4,
		    assignee_user_id = $5, status = $6, on_or_after_at = $7,
		    must_be_done_after_task_id = $8, sort_key = $9,
		    next_task_id = $10, next_task_assignee_user_id = $11,
		    updated_at = $12, completed_at = $13
		WHERE id = $1
		RETURNING `+taskCols,
		t.ID, t.ProjectID, t.Title, t.Detail,
		t.AssigneeUserID, t.Status, t.OnOrAfterAt,
		t.MustBeDoneAfterTaskID, t.SortKey,
		t.NextTaskID, t.NextTaskAssigneeUserID,
		t.UpdatedAt, t.CompletedAt,
	))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return out, nil
}

func (r *SwarmRepo) LastSortKey(ctx context.Context, status domain.TaskStatus) (string, error) {
	var key sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(sort_key) FROM hive_tasks WHERE status = $1
	`, status).Scan(&key)
	if err != nil {
		return "", fmt.Errorf("last sort key: %w", err)
	}
	return key.String, nil
}

func (r *SwarmRepo) InsertTaskEvent(ctx context.Context, e *domain.TaskEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hive_task_events
			(task_id, actor_user_id, kind, before_state, after_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.TaskID, e.ActorUserID, e.Kind,
		[]byte(e.BeforeState), []byte(e.AfterState), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}

func (r *SwarmRepo) ListTaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, actor_user_id, kind, before_state, after_state, created_at
		FROM hive_task_events
		WHERE task_id = $1
		ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", err)
	}
	defer rows.Close()

	var out []domain.TaskEvent
	for rows.Next() {
		var e domain.TaskEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ActorUserID, &e.Kind,
			&e.BeforeState, &e.AfterState, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- Recurring templates ----

const templateCols = `id, title, detail, project_id, owner_user_id,
	       primary_agent, fallback_agent, enabled, start_at, end_at,
	       every_interval, every_unit, days_of_week, week_parity,
	       between_hours_start, between_hours_end, timezone,
	       mute, mute_interval, repeat_count, last_run_at,
	       created_at, updated_at`

func scanTemplate(row rowScanner) (*domain.RecurringTemplate, error) {
	t := &domain.RecurringTemplate{}
	var days pq.StringArray
	err := row.Scan(&t.ID, &t.Title, &t.Detail, &t.ProjectID, &t.OwnerUserID,
		&t.PrimaryAgent, &t.FallbackAgent, &t.Enabled, &t.StartAt, &t.EndAt,
		&t.EveryInterval, &t.EveryUnit, &days, &t.WeekParity,
		&t.BetweenHoursStart, &t.BetweenHoursEnd, &t.Timezone,
		&t.Mute, &t.MuteInterval, &t.RepeatCount, &t.LastRunAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DaysOfWeek = []string(days)
	return t, nil
}

func (r *SwarmRepo) InsertTemplate(ctx context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hive_recurring_templates
			(id, title, detail, project_id, owner_user_id,
			 primary_agent, fallback_agent, enabled, start_at, end_at,
			 every_interval, every_unit, days_of_week, week_parity,
			 between_hours_start, between_hours_end, timezone,
			 mute, mute_interval, repeat_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, t.ID, t.Title, t.Detail, t.ProjectID, t.OwnerUserID,
		t.PrimaryAgent, t.FallbackAgent, t.Enabled, t.StartAt, t.EndAt,
		t.EveryInterval, t.EveryUnit, pq.Array(t.DaysOfWeek), t.WeekParity,
		t.BetweenHoursStart, t.BetweenHoursEnd, t.Timezone,
		t.Mute, t.MuteInterval, t.RepeatCount, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	out := *t
	return &out, nil
}

func (r *SwarmRepo) GetTemplate(ctx context.Context, id string) (*domain.RecurringTemplate, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `
		SELECT `+templateCols+` FROM hive_recurring_templates WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *SwarmRepo) ListTemplates(ctx context.Context) ([]domain.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+templateCols+` FROM hive_recurring_templates ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SwarmRepo) UpdateTemplate(ctx context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error) {
	out, err := scanTemplate(r.db.QueryRowContext(ctx, `
		UPDATE hive_recurring_templates
		SET title = $2, detail = $3, project_id = $4,
		    primary_agent = $5, fallback_agent = $6,
		    start_at = $7, end_at = $8,
		    every_interval = $9, every_unit = $10,
		    days_of_week = $11, week_parity = $12,
		    between_hours_start = $13, between_hours_end = $14,
		    timezone = $15, mute = $16, mute_interval = $17,
		    repeat_count = $18, updated_at = $19
		WHERE id = $1
		RETURNING `+templateCols,
		t.ID, t.Title, t.Detail, t.ProjectID,
		t.PrimaryAgent, t.FallbackAgent,
		t.StartAt, t.EndAt,
		t.EveryInterval, t.EveryUnit,
		pq.Array(t.DaysOfWeek), t.WeekParity,
		t.BetweenHoursStart, t.BetweenHoursEnd,
		t.Timezone, t.Mute, t.MuteInterval,
		t.RepeatCount, t.UpdatedAt,
	))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return out, nil
}

func (r *SwarmRepo) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hive_recurring_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return swarm.ErrNotFound
	}
	return nil
}

func (r *SwarmRepo) SetTemplateEnabled(ctx context.Context, id string, enabled bool) (*domain.RecurringTemplate, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `
		UPDATE hive_recurring_templates SET enabled = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+templateCols,
		id, enabled,
	))
	if err == sql.ErrNoRows {
		return nil, swarm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle template: %w", err)
	}
	return t, nil
}

func (r *SwarmRepo) SetTemplateLastRun(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE hive_recurring_templates SET last_run_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return swarm.ErrNotFound
	}
	return nil
}

func (r *SwarmRepo) CountRecurringInstances(ctx context.Context, templateID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hive_tasks WHERE recurring_template_id = $1
	`, templateID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return n, nil
}

func (r *SwarmRepo) InsertRecurringInstance(ctx context.Context, t *domain.Task) (bool, error) {
	res, err := r.db.ExecContext(ctx, taskInsert+`
	ON CONFLICT (recurring_template_id, recurring_instance_at)
		WHERE recurring_template_id IS NOT NULL AND recurring_instance_at IS NOT NULL
		DO NOTHING`,
		taskArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
