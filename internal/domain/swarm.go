package domain

import (
	"encoding/json"
	"regexp"
	"time"
)

// TaskStatus enumerates the task state machine. The simple linear flow is
// queued → ready → in_progress → review → complete, with holding as a
// parking state; transitions are free-form except the blocked rule.
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskReady      TaskStatus = "ready"
	TaskInProgress TaskStatus = "in_progress"
	TaskHolding    TaskStatus = "holding"
	TaskReview     TaskStatus = "review"
	TaskComplete   TaskStatus = "complete"
)

// ValidTaskStatus reports whether s is a known status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskQueued, TaskReady, TaskInProgress, TaskHolding, TaskReview, TaskComplete:
		return true
	}
	return false
}

// StatusRank orders statuses for the planned view: active work first,
// completed last.
func StatusRank(s TaskStatus) int {
	switch s {
	case TaskInProgress:
		return 1
	case TaskReview:
		return 2
	case TaskReady:
		return 3
	case TaskQueued:
		return 4
	case TaskHolding:
		return 5
	case TaskComplete:
		return 6
	}
	return 7
}

// ColorPattern validates project colors: #RRGGBB.
var ColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Project groups tasks and carries team lead assignments.
type Project struct {
	ID                  string     `json:"id" db:"id"`
	Title               string     `json:"title" db:"title"`
	Description         string     `json:"description" db:"description"`
	Color               string     `json:"color" db:"color"`
	ProjectLeadUserID   string     `json:"projectLeadUserId" db:"project_lead_user_id"`
	DeveloperLeadUserID string     `json:"developerLeadUserId" db:"developer_lead_user_id"`
	OneDevURL           string     `json:"onedevUrl" db:"onedev_url"`
	DokployDeployURL    string     `json:"dokployDeployUrl" db:"dokploy_deploy_url"`
	ArchivedAt          *time.Time `json:"archivedAt" db:"archived_at"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt" db:"updated_at"`
}

// Task is one unit of tracked work.
type Task struct {
	ID                     string     `json:"id" db:"id"`
	ProjectID              *string    `json:"projectId" db:"project_id"`
	Title                  string     `json:"title" db:"title"`
	Detail                 string     `json:"detail" db:"detail"`
	CreatorUserID          string     `json:"creatorUserId" db:"creator_user_id"`
	AssigneeUserID         *string    `json:"assigneeUserId" db:"assignee_user_id"`
	Status                 TaskStatus `json:"status" db:"status"`
	OnOrAfterAt            *time.Time `json:"onOrAfterAt" db:"on_or_after_at"`
	MustBeDoneAfterTaskID  *string    `json:"mustBeDoneAfterTaskId" db:"must_be_done_after_task_id"`
	SortKey                string     `json:"sortKey" db:"sort_key"`
	NextTaskID             *string    `json:"nextTaskId" db:"next_task_id"`
	NextTaskAssigneeUserID *string    `json:"nextTaskAssigneeUserId" db:"next_task_assignee_user_id"`
	CreatedAt              time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time  `json:"updatedAt" db:"updated_at"`
	CompletedAt            *time.Time `json:"completedAt" db:"completed_at"`
	RecurringTemplateID    *string    `json:"recurringTemplateId" db:"recurring_template_id"`
	RecurringInstanceAt    *time.Time `json:"recurringInstanceAt" db:"recurring_instance_at"`

	// BlockedReason is derived on read, never stored: set when the
	// predecessor is incomplete or on_or_after_at is in the future.
	BlockedReason *string `json:"blockedReason,omitempty" db:"-"`
}

// TaskEventKind enumerates audit log entry kinds.
type TaskEventKind string

const (
	TaskEventCreated       TaskEventKind = "created"
	TaskEventUpdated       TaskEventKind = "updated"
	TaskEventStatusChanged TaskEventKind = "status_changed"
	TaskEventClaimed       TaskEventKind = "claimed"
	TaskEventReordered     TaskEventKind = "reordered"
)

// TaskEvent is one audit log row with before/after snapshots.
type TaskEvent struct {
	ID          int64           `json:"id" db:"id"`
	TaskID      string          `json:"taskId" db:"task_id"`
	ActorUserID string          `json:"actorUserId" db:"actor_user_id"`
	Kind        TaskEventKind   `json:"kind" db:"kind"`
	BeforeState json.RawMessage `json:"beforeState" db:"before_state"`
	AfterState  json.RawMessage `json:"afterState" db:"after_state"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// RecurringUnit enumerates the interval units for recurring templates.
type RecurringUnit string

const (
	EveryMinute RecurringUnit = "minute"
	EveryHour   RecurringUnit = "hour"
	EveryDay    RecurringUnit = "day"
	EveryWeek   RecurringUnit = "week"
	EveryMonth  RecurringUnit = "month"
)

// ValidRecurringUnit reports whether u is a known unit.
func ValidRecurringUnit(u RecurringUnit) bool {
	switch u {
	case EveryMinute, EveryHour, EveryDay, EveryWeek, EveryMonth:
		return true
	}
	return false
}

// WeekParity restricts template occurrences to odd/even ISO weeks.
type WeekParity string

const (
	ParityAny  WeekParity = "any"
	ParityOdd  WeekParity = "odd"
	ParityEven WeekParity = "even"
)

// RecurringTemplate describes periodic task generation.
type RecurringTemplate struct {
	ID                string        `json:"id" db:"id"`
	Title             string        `json:"title" db:"title"`
	Detail            string        `json:"detail" db:"detail"`
	ProjectID         *string       `json:"projectId" db:"project_id"`
	OwnerUserID       string        `json:"ownerUserId" db:"owner_user_id"`
	PrimaryAgent      string        `json:"primaryAgent" db:"primary_agent"`
	FallbackAgent     string        `json:"fallbackAgent" db:"fallback_agent"`
	Enabled           bool          `json:"enabled" db:"enabled"`
	StartAt           time.Time     `json:"startAt" db:"start_at"`
	EndAt             *time.Time    `json:"endAt" db:"end_at"`
	EveryInterval     int           `json:"everyInterval" db:"every_interval"`
	EveryUnit         RecurringUnit `json:"everyUnit" db:"every_unit"`
	DaysOfWeek        []string      `json:"daysOfWeek" db:"days_of_week"`
	WeekParity        WeekParity    `json:"weekParity" db:"week_parity"`
	BetweenHoursStart *int          `json:"betweenHoursStart" db:"between_hours_start"`
	BetweenHoursEnd   *int          `json:"betweenHoursEnd" db:"between_hours_end"`
	Timezone          string        `json:"timezone" db:"timezone"`
	Mute              bool          `json:"mute" db:"mute"`
	MuteInterval      string        `json:"muteInterval" db:"mute_interval"`
	RepeatCount       *int          `json:"repeatCount" db:"repeat_count"`
	LastRunAt         *time.Time    `json:"lastRunAt" db:"last_run_at"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}
