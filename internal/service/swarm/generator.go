package swarm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/pkg/logger"
	"github.com/hivehq/hive/internal/service/broadcast"
)

// TemplateInput carries the fields of a new recurring template.
type TemplateInput struct {
	Title             string               `json:"title"`
	Detail            string               `json:"detail"`
	ProjectID         *string              `json:"projectId"`
	PrimaryAgent      string               `json:"primaryAgent"`
	FallbackAgent     string               `json:"fallbackAgent"`
	StartAt           *time.Time           `json:"startAt"`
	EndAt             *time.Time           `json:"endAt"`
	EveryInterval     int                  `json:"everyInterval"`
	EveryUnit         domain.RecurringUnit `json:"everyUnit"`
	DaysOfWeek        []string             `json:"daysOfWeek"`
	WeekParity        domain.WeekParity    `json:"weekParity"`
	BetweenHoursStart *int                 `json:"betweenHoursStart"`
	BetweenHoursEnd   *int                 `json:"betweenHoursEnd"`
	Timezone          string               `json:"timezone"`
	Mute              bool                 `json:"mute"`
	MuteInterval      string               `json:"muteInterval"`
	RepeatCount       *int                 `json:"repeatCount"`
}

func validateTemplateFields(in *TemplateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.EveryInterval < 1 {
		return fmt.Errorf("%w: everyInterval must be at least 1", ErrValidation)
	}
	if !domain.ValidRecurringUnit(in.EveryUnit) {
		return fmt.Errorf("%w: unknown everyUnit %q", ErrValidation, in.EveryUnit)
	}
	switch in.WeekParity {
	case "", domain.ParityAny, domain.ParityOdd, domain.ParityEven:
	default:
		return fmt.Errorf("%w: unknown weekParity %q", ErrValidation, in.WeekParity)
	}
	for _, d := range in.DaysOfWeek {
		if !ValidWeekday(d) {
			return fmt.Errorf("%w: unknown day %q", ErrValidation, d)
		}
	}
	if (in.BetweenHoursStart == nil) != (in.BetweenHoursEnd == nil) {
		return fmt.Errorf("%w: betweenHoursStart and betweenHoursEnd must be set together", ErrValidation)
	}
	if in.BetweenHoursStart != nil {
		if *in.BetweenHoursStart < 0 || *in.BetweenHoursStart > 23 ||
			*in.BetweenHoursEnd < 0 || *in.BetweenHoursEnd > 23 {
			return fmt.Errorf("%w: betweenHours must be 0..23", ErrValidation)
		}
	}
	if in.Timezone != "" {
		if _, err := time.LoadLocation(in.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrValidation, in.Timezone)
		}
	}
	if in.RepeatCount != nil && *in.RepeatCount < 1 {
		return fmt.Errorf("%w: repeatCount must be at least 1", ErrValidation)
	}
	return nil
}

// CreateTemplate registers a recurring template, enabled by default.
func (s *Service) CreateTemplate(ctx context.Context, actor string, in TemplateInput) (*domain.RecurringTemplate, error) {
	if err := validateTemplateFields(&in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	start := now
	if in.StartAt != nil {
		start = in.StartAt.UTC()
	}
	parity := in.WeekParity
	if parity == "" {
		parity = domain.ParityAny
	}
	t := &domain.RecurringTemplate{
		ID:                s.newID(),
		Title:             in.Title,
		Detail:            in.Detail,
		ProjectID:         in.ProjectID,
		OwnerUserID:       actor,
		PrimaryAgent:      in.PrimaryAgent,
		FallbackAgent:     in.FallbackAgent,
		Enabled:           true,
		StartAt:           start,
		EndAt:             in.EndAt,
		EveryInterval:     in.EveryInterval,
		EveryUnit:         in.EveryUnit,
		DaysOfWeek:        in.DaysOfWeek,
		WeekParity:        parity,
		BetweenHoursStart: in.BetweenHoursStart,
		BetweenHoursEnd:   in.BetweenHoursEnd,
		Timezone:          in.Timezone,
		Mute:              in.Mute,
		MuteInterval:      in.MuteInterval,
		RepeatCount:       in.RepeatCount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return s.repo.InsertTemplate(ctx, t)
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(ctx context.Context, id string) (*domain.RecurringTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

// ListTemplates returns every template.
func (s *Service) ListTemplates(ctx context.Context) ([]domain.RecurringTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// TemplatePatch is a partial template update; nil fields are unchanged.
type TemplatePatch struct {
	Title             *string               `json:"title"`
	Detail            *string               `json:"detail"`
	ProjectID         *string               `json:"projectId"`
	PrimaryAgent      *string               `json:"primaryAgent"`
	FallbackAgent     *string               `json:"fallbackAgent"`
	StartAt           *time.Time            `json:"startAt"`
	EndAt             *time.Time            `json:"endAt"`
	EveryInterval     *int                  `json:"everyInterval"`
	EveryUnit         *domain.RecurringUnit `json:"everyUnit"`
	DaysOfWeek        []string              `json:"daysOfWeek"`
	WeekParity        *domain.WeekParity    `json:"weekParity"`
	BetweenHoursStart *int                  `json:"betweenHoursStart"`
	BetweenHoursEnd   *int                  `json:"betweenHoursEnd"`
	Timezone          *string               `json:"timezone"`
	Mute              *bool                 `json:"mute"`
	MuteInterval      *string               `json:"muteInterval"`
	RepeatCount       *int                  `json:"repeatCount"`
}

// UpdateTemplate applies a partial patch and revalidates the result.
func (s *Service) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*domain.RecurringTemplate, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Detail != nil {
		t.Detail = *patch.Detail
	}
	if patch.ProjectID != nil {
		t.ProjectID = patch.ProjectID
	}
	if patch.PrimaryAgent != nil {
		t.PrimaryAgent = *patch.PrimaryAgent
	}
	if patch.FallbackAgent != nil {
		t.FallbackAgent = *patch.FallbackAgent
	}
	if patch.StartAt != nil {
		t.StartAt = patch.StartAt.UTC()
	}
	if patch.EndAt != nil {
		t.EndAt = patch.EndAt
	}
	if patch.EveryInterval != nil {
		t.EveryInterval = *patch.EveryInterval
	}
	if patch.EveryUnit != nil {
		t.EveryUnit = *patch.EveryUnit
	}
	if patch.DaysOfWeek != nil {
		t.DaysOfWeek = patch.DaysOfWeek
	}
	if patch.WeekParity != nil {
		t.WeekParity = *patch.WeekParity
	}
	if patch.BetweenHoursStart != nil {
		t.BetweenHoursStart = patch.BetweenHoursStart
	}
	if patch.BetweenHoursEnd != nil {
		t.BetweenHoursEnd = patch.BetweenHoursEnd
	}
	if patch.Timezone != nil {
		t.Timezone = *patch.Timezone
	}
	if patch.Mute != nil {
		t.Mute = *patch.Mute
	}
	if patch.MuteInterval != nil {
		t.MuteInterval = *patch.MuteInterval
	}
	if patch.RepeatCount != nil {
		t.RepeatCount = patch.RepeatCount
	}

	check := TemplateInput{
		Title:             t.Title,
		EveryInterval:     t.EveryInterval,
		EveryUnit:         t.EveryUnit,
		DaysOfWeek:        t.DaysOfWeek,
		WeekParity:        t.WeekParity,
		BetweenHoursStart: t.BetweenHoursStart,
		BetweenHoursEnd:   t.BetweenHoursEnd,
		Timezone:          t.Timezone,
		RepeatCount:       t.RepeatCount,
	}
	if err := validateTemplateFields(&check); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now().UTC()
	return s.repo.UpdateTemplate(ctx, t)
}

// DeleteTemplate removes a template. Generated instances survive.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.repo.DeleteTemplate(ctx, id)
}

// SetTemplateEnabled toggles generation for a template.
func (s *Service) SetTemplateEnabled(ctx context.Context, id string, enabled bool) (*domain.RecurringTemplate, error) {
	return s.repo.SetTemplateEnabled(ctx, id, enabled)
}

// GenerateResult reports one generator run.
type GenerateResult struct {
	Generated int      `json:"generated"`
	Errors    []string `json:"errors"`
}

// RunGenerator materializes due recurring instances, optionally scoped
// to one template. Runs are serialized by the distributed lock when one
// is configured; a run that loses the lock does nothing and says so.
func (s *Service) RunGenerator(ctx context.Context, actor, templateID string) (*GenerateResult, error) {
	res := &GenerateResult{Errors: []string{}}

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire generator lock: %w", err)
		}
		if !ok {
			res.Errors = append(res.Errors, "generator already running")
			return res, nil
		}
		defer func() {
			if err := s.lock.Release(context.Background()); err != nil {
				logger.Warn("release generator lock", "err", err)
			}
		}()
	}

	var templates []domain.RecurringTemplate
	if templateID != "" {
		t, err := s.repo.GetTemplate(ctx, templateID)
		if err != nil {
			return nil, err
		}
		templates = []domain.RecurringTemplate{*t}
	} else {
		var err error
		templates, err = s.repo.ListTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
	}

	now := s.now().UTC()
	horizonEnd := now.Add(s.gen.Horizon)
	for i := range templates {
		tpl := &templates[i]
		if !tpl.Enabled {
			continue
		}
		if tpl.StartAt.After(now) {
			continue
		}
		if tpl.EndAt != nil && tpl.EndAt.Before(now) {
			continue
		}
		n, err := s.generateTemplate(ctx, actor, tpl, horizonEnd)
		res.Generated += n
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", tpl.Title, err))
		}
	}
	return res, nil
}

// generateTemplate walks occurrences from the template's cursor and
// inserts each due instance. The cursor advances to the last occurrence
// inside the horizon so the next run resumes where this one stopped —
// even across the per-run cap.
func (s *Service) generateTemplate(ctx context.Context, actor string, tpl *domain.RecurringTemplate, horizonEnd time.Time) (int, error) {
	existing := 0
	if tpl.RepeatCount != nil {
		var err error
		existing, err = s.repo.CountRecurringInstances(ctx, tpl.ID)
		if err != nil {
			return 0, fmt.Errorf("count instances: %w", err)
		}
	}

	cursor := tpl.StartAt
	if tpl.LastRunAt != nil && tpl.LastRunAt.After(cursor) {
		cursor = *tpl.LastRunAt
	}

	generated := 0
	var lastDue time.Time
	for generated < s.gen.MaxPerRun {
		if tpl.RepeatCount != nil && existing >= *tpl.RepeatCount {
			break
		}
		next := nextOccurrence(tpl, cursor)
		if !next.After(cursor) {
			return generated, fmt.Errorf("occurrence did not advance past %v", cursor)
		}
		if next.After(horizonEnd) {
			break
		}
		if tpl.EndAt != nil && next.After(*tpl.EndAt) {
			break
		}
		cursor = next
		lastDue = next

		created, err := s.insertInstance(ctx, actor, tpl, next)
		if err != nil {
			return generated, err
		}
		if created {
			generated++
			existing++
		}
	}

	if !lastDue.IsZero() {
		if err := s.repo.SetTemplateLastRun(ctx, tpl.ID, lastDue); err != nil {
			return generated, fmt.Errorf("update last run: %w", err)
		}
	}
	return generated, nil
}

func (s *Service) insertInstance(ctx context.Context, actor string, tpl *domain.RecurringTemplate, at time.Time) (bool, error) {
	last, err := s.repo.LastSortKey(ctx, domain.TaskQueued)
	if err != nil {
		return false, fmt.Errorf("last sort key: %w", err)
	}
	now := s.now().UTC()
	instanceAt := at.UTC()
	t := &domain.Task{
		ID:                  s.newID(),
		ProjectID:           tpl.ProjectID,
		Title:               tpl.Title,
		Detail:              tpl.Detail,
		CreatorUserID:       tpl.OwnerUserID,
		Status:              domain.TaskQueued,
		SortKey:             KeyBetween(last, ""),
		CreatedAt:           now,
		UpdatedAt:           now,
		RecurringTemplateID: &tpl.ID,
		RecurringInstanceAt: &instanceAt,
	}
	if tpl.PrimaryAgent != "" {
		agent := tpl.PrimaryAgent
		t.AssigneeUserID = &agent
	}

	created, err := s.repo.InsertRecurringInstance(ctx, t)
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	if created {
		s.audit(ctx, t.ID, actor, domain.TaskEventCreated, nil, t)
		if !tpl.Mute {
			s.emit(ctx, fmt.Sprintf("recurring task %q scheduled for %s", t.Title, instanceAt.Format(time.RFC3339)), broadcast.SwarmBody{
				EventType: EventTaskCreated,
				TaskID:    t.ID,
				ProjectID: strOrEmpty(t.ProjectID),
				Title:     t.Title,
				Actor:     actor,
				Assignee:  t.AssigneeUserID,
				Status:    string(t.Status),
				DeepLink:  "/swarm/tasks/" + t.ID,
			})
		}
	}
	return created, nil
}
