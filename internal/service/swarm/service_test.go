package swarm

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/service/broadcast"
)

type fakeRepo struct {
	projects  []*domain.Project
	tasks     []*domain.Task
	events    []*domain.TaskEvent
	templates []*domain.RecurringTemplate
	nextEvent int64
}

func newFakeRepo() *fakeRepo { return &fakeRepo{nextEvent: 1} }

func (r *fakeRepo) InsertProject(_ context.Context, p *domain.Project) (*domain.Project, error) {
	cp := *p
	r.projects = append(r.projects, &cp)
	out := cp
	return &out, nil
}

func (r *fakeRepo) findProject(id string) *domain.Project {
	for _, p := range r.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *fakeRepo) GetProject(_ context.Context, id string) (*domain.Project, error) {
	p := r.findProject(id)
	if p == nil {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) ListProjects(_ context.Context, includeArchived bool) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range r.projects {
		if !includeArchived && p.ArchivedAt != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeRepo) UpdateProject(_ context.Context, p *domain.Project) (*domain.Project, error) {
	ex := r.findProject(p.ID)
	if ex == nil {
		return nil, ErrNotFound
	}
	*ex = *p
	cp := *ex
	return &cp, nil
}

func (r *fakeRepo) SetProjectArchived(_ context.Context, id string, at *time.Time) (*domain.Project, error) {
	ex := r.findProject(id)
	if ex == nil {
		return nil, ErrNotFound
	}
	ex.ArchivedAt = at
	cp := *ex
	return &cp, nil
}

func (r *fakeRepo) InsertTask(_ context.Context, t *domain.Task) (*domain.Task, error) {
	cp := *t
	r.tasks = append(r.tasks, &cp)
	out := cp
	return &out, nil
}

func (r *fakeRepo) findTask(id string) *domain.Task {
	for _, t := range r.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (r *fakeRepo) GetTask(_ context.Context, id string) (*domain.Task, error) {
	t := r.findTask(id)
	if t == nil {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) GetTasksByIDs(_ context.Context, ids []string) ([]domain.Task, error) {
	var out []domain.Task
	for _, id := range ids {
		if t := r.findTask(id); t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListTasks(_ context.Context, q TaskQuery) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range r.tasks {
		if q.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *q.ProjectID) {
			continue
		}
		if q.Status != nil && t.Status != *q.Status {
			continue
		}
		if q.Assignee != nil && (t.AssigneeUserID == nil || *t.AssigneeUserID != *q.Assignee) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := domain.StatusRank(a.Status), domain.StatusRank(b.Status); ra != rb {
			return ra < rb
		}
		if a.SortKey != b.SortKey {
			return a.SortKey < b.SortKey
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *fakeRepo) UpdateTask(_ context.Context, t *domain.Task) (*domain.Task, error) {
	ex := r.findTask(t.ID)
	if ex == nil {
		return nil, ErrNotFound
	}
	*ex = *t
	cp := *ex
	return &cp, nil
}

func (r *fakeRepo) LastSortKey(_ context.Context, status domain.TaskStatus) (string, error) {
	last := ""
	for _, t := range r.tasks {
		if t.Status == status && t.SortKey > last {
			last = t.SortKey
		}
	}
	return last, nil
}

func (r *fakeRepo) InsertTaskEvent(_ context.Context, e *domain.TaskEvent) error {
	cp := *e
	cp.ID = r.nextEvent
	r.nextEvent++
	r.events = append(r.events, &cp)
	return nil
}

func (r *fakeRepo) ListTaskEvents(_ context.Context, taskID string) ([]domain.TaskEvent, error) {
	var out []domain.TaskEvent
	for _, e := range r.events {
		if e.TaskID == taskID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertTemplate(_ context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error) {
	cp := *t
	r.templates = append(r.templates, &cp)
	out := cp
	return &out, nil
}

func (r *fakeRepo) findTemplate(id string) *domain.RecurringTemplate {
	for _, t := range r.templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (r *fakeRepo) GetTemplate(_ context.Context, id string) (*domain.RecurringTemplate, error) {
	t := r.findTemplate(id)
	if t == nil {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) ListTemplates(context.Context) ([]domain.RecurringTemplate, error) {
	var out []domain.RecurringTemplate
	for _, t := range r.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeRepo) UpdateTemplate(_ context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error) {
	ex := r.findTemplate(t.ID)
	if ex == nil {
		return nil, ErrNotFound
	}
	*ex = *t
	cp := *ex
	return &cp, nil
}

func (r *fakeRepo) DeleteTemplate(_ context.Context, id string) error {
	for i, t := range r.templates {
		if t.ID == id {
			r.templates = append(r.templates[:i], r.templates[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) SetTemplateEnabled(_ context.Context, id string, enabled bool) (*domain.RecurringTemplate, error) {
	ex := r.findTemplate(id)
	if ex == nil {
		return nil, ErrNotFound
	}
	ex.Enabled = enabled
	cp := *ex
	return &cp, nil
}

func (r *fakeRepo) SetTemplateLastRun(_ context.Context, id string, at time.Time) error {
	ex := r.findTemplate(id)
	if ex == nil {
		return ErrNotFound
	}
	cp := at
	ex.LastRunAt = &cp
	return nil
}

func (r *fakeRepo) CountRecurringInstances(_ context.Context, templateID string) (int, error) {
	n := 0
	for _, t := range r.tasks {
		if t.RecurringTemplateID != nil && *t.RecurringTemplateID == templateID {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) InsertRecurringInstance(_ context.Context, t *domain.Task) (bool, error) {
	for _, ex := range r.tasks {
		if ex.RecurringTemplateID != nil && t.RecurringTemplateID != nil &&
			*ex.RecurringTemplateID == *t.RecurringTemplateID &&
			ex.RecurringInstanceAt != nil && t.RecurringInstanceAt != nil &&
			ex.RecurringInstanceAt.Equal(*t.RecurringInstanceAt) {
			return false, nil
		}
	}
	cp := *t
	r.tasks = append(r.tasks, &cp)
	return true, nil
}

type fakeFeed struct {
	titles []string
	bodies []broadcast.SwarmBody
}

func (f *fakeFeed) RecordSwarmEvent(_ context.Context, title string, body broadcast.SwarmBody) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return nil
}

func newTestService(gen GeneratorConfig) (*Service, *fakeRepo, *fakeFeed, *time.Time) {
	repo := newFakeRepo()
	feed := &fakeFeed{}
	svc := NewService(repo, bus.New(), feed, nil, gen)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, repo, feed, &now
}

func TestCreateProjectValidation(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	valid := ProjectInput{
		Title: "Hive", Color: "#1a2b3c",
		ProjectLeadUserID: "chris", DeveloperLeadUserID: "clio",
	}
	if _, err := svc.CreateProject(ctx, "chris", valid); err != nil {
		t.Fatalf("valid project: %v", err)
	}

	bad := valid
	bad.Color = "red"
	if _, err := svc.CreateProject(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad color should fail, got %v", err)
	}
	bad = valid
	bad.ProjectLeadUserID = ""
	if _, err := svc.CreateProject(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing lead should fail, got %v", err)
	}
}

func TestArchiveProjectHidesFromListing(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	p, _ := svc.CreateProject(ctx, "chris", ProjectInput{
		Title: "Old", Color: "#000000",
		ProjectLeadUserID: "chris", DeveloperLeadUserID: "clio",
	})
	if _, err := svc.SetProjectArchived(ctx, "chris", p.ID, true); err != nil {
		t.Fatalf("archive: %v", err)
	}

	visible, _ := svc.ListProjects(ctx, false)
	if len(visible) != 0 {
		t.Fatalf("archived project should be hidden: %+v", visible)
	}
	all, _ := svc.ListProjects(ctx, true)
	if len(all) != 1 || all[0].ArchivedAt == nil {
		t.Fatalf("archived project missing from full listing: %+v", all)
	}

	un, _ := svc.SetProjectArchived(ctx, "chris", p.ID, false)
	if un.ArchivedAt != nil {
		t.Fatal("unarchive should clear archivedAt")
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	svc, repo, feed, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	a, err := svc.CreateTask(ctx, "chris", TaskInput{Title: "first"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != domain.TaskQueued || a.SortKey == "" {
		t.Fatalf("defaults wrong: %+v", a)
	}
	b, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "second"})
	if b.SortKey <= a.SortKey {
		t.Fatalf("new task should sort after the bucket: %q vs %q", b.SortKey, a.SortKey)
	}

	events, _ := repo.ListTaskEvents(ctx, a.ID)
	if len(events) != 1 || events[0].Kind != domain.TaskEventCreated {
		t.Fatalf("expected created audit entry: %+v", events)
	}
	if len(feed.bodies) < 1 || feed.bodies[0].EventType != EventTaskCreated {
		t.Fatalf("expected feed mirror: %+v", feed.bodies)
	}

	if _, err := svc.CreateTask(ctx, "chris", TaskInput{Title: " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title should fail, got %v", err)
	}
}

func TestStatusBlockedByPredecessor(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	ready := domain.TaskReady
	p, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "predecessor", Status: &ready})
	task, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "dependent", MustBeDoneAfterTaskID: &p.ID})

	got, _ := svc.GetTask(ctx, task.ID)
	if got.BlockedReason == nil || !strings.Contains(*got.BlockedReason, "waiting on: predecessor") {
		t.Fatalf("blocked reason missing: %+v", got.BlockedReason)
	}

	_, err := svc.SetStatus(ctx, "chris", task.ID, domain.TaskInProgress)
	if !errors.Is(err, ErrValidation) || !strings.Contains(err.Error(), "blocked by") {
		t.Fatalf("blocked transition should fail with 'blocked by', got %v", err)
	}

	// Parking states stay allowed while blocked.
	if _, err := svc.SetStatus(ctx, "chris", task.ID, domain.TaskHolding); err != nil {
		t.Fatalf("holding while blocked: %v", err)
	}

	if _, err := svc.SetStatus(ctx, "chris", p.ID, domain.TaskComplete); err != nil {
		t.Fatalf("complete predecessor: %v", err)
	}
	out, err := svc.SetStatus(ctx, "chris", task.ID, domain.TaskInProgress)
	if err != nil {
		t.Fatalf("transition after unblock: %v", err)
	}
	if out.Status != domain.TaskInProgress || out.BlockedReason != nil {
		t.Fatalf("task should be unblocked and in progress: %+v", out)
	}
}

func TestStatusNotBefore(t *testing.T) {
	svc, _, _, now := newTestService(GeneratorConfig{})
	ctx := context.Background()

	future := now.Add(2 * time.Hour)
	task, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "later", OnOrAfterAt: &future})

	got, _ := svc.GetTask(ctx, task.ID)
	if got.BlockedReason == nil || !strings.HasPrefix(*got.BlockedReason, "not-before ") {
		t.Fatalf("expected not-before reason, got %+v", got.BlockedReason)
	}

	if _, err := svc.SetStatus(ctx, "chris", task.ID, domain.TaskComplete); !errors.Is(err, ErrValidation) {
		t.Fatalf("completing a not-before task should fail, got %v", err)
	}

	*now = now.Add(3 * time.Hour)
	if _, err := svc.SetStatus(ctx, "chris", task.ID, domain.TaskInProgress); err != nil {
		t.Fatalf("after the gate passes: %v", err)
	}
}

func TestCompletedAtTracksStatus(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "work"})

	done, _ := svc.SetStatus(ctx, "chris", task.ID, domain.TaskComplete)
	if done.CompletedAt == nil {
		t.Fatal("complete must stamp completedAt")
	}
	rework, _ := svc.SetStatus(ctx, "chris", task.ID, domain.TaskInProgress)
	if rework.CompletedAt != nil {
		t.Fatal("leaving complete must clear completedAt")
	}
}

func TestClaim(t *testing.T) {
	svc, repo, feed, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "unowned"})

	claimed, err := svc.Claim(ctx, "clio", task.ID)
	if err != nil || claimed.AssigneeUserID == nil || *claimed.AssigneeUserID != "clio" {
		t.Fatalf("claim failed: %+v %v", claimed, err)
	}

	// Re-claiming one's own task is a no-op: no new audit entry.
	before := len(repo.events)
	svc.Claim(ctx, "clio", task.ID)
	if len(repo.events) != before {
		t.Fatal("idempotent claim should not write an audit entry")
	}

	// Claiming someone else's task reassigns.
	re, err := svc.Claim(ctx, "chris", task.ID)
	if err != nil || *re.AssigneeUserID != "chris" {
		t.Fatalf("reclaim should reassign: %+v %v", re, err)
	}

	last := feed.bodies[len(feed.bodies)-1]
	if last.EventType != EventTaskAssigned {
		t.Fatalf("claim should mirror as assigned, got %s", last.EventType)
	}
}

func TestUpdateDistinguishesAssignment(t *testing.T) {
	svc, _, feed, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "t"})

	detail := "more words"
	svc.UpdateTask(ctx, "chris", task.ID, TaskPatch{Detail: &detail})
	if feed.bodies[len(feed.bodies)-1].EventType != EventTaskUpdated {
		t.Fatalf("plain patch should mirror as updated: %+v", feed.bodies)
	}

	clio := "clio"
	svc.UpdateTask(ctx, "chris", task.ID, TaskPatch{AssigneeUserID: &clio})
	if feed.bodies[len(feed.bodies)-1].EventType != EventTaskAssigned {
		t.Fatalf("assignment patch should mirror as assigned: %+v", feed.bodies)
	}
}

func TestReorder(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	a, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "a"})
	b, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "b"})
	c, _ := svc.CreateTask(ctx, "chris", TaskInput{Title: "c"})

	order := func() []string {
		tasks, err := svc.ListTasks(ctx, TaskQuery{Sort: "planned"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var titles []string
		for _, x := range tasks {
			titles = append(titles, x.Title)
		}
		return titles
	}

	if got := order(); strings.Join(got, "") != "abc" {
		t.Fatalf("initial order wrong: %v", got)
	}

	if _, err := svc.Reorder(ctx, "chris", c.ID, &a.ID); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := order(); strings.Join(got, "") != "cab" {
		t.Fatalf("after move-before-a: %v", got)
	}

	// Reorder to current position changes nothing.
	cur, _ := svc.GetTask(ctx, c.ID)
	same, err := svc.Reorder(ctx, "chris", c.ID, &a.ID)
	if err != nil {
		t.Fatalf("no-op reorder: %v", err)
	}
	if same.SortKey != cur.SortKey {
		t.Fatal("no-op reorder must not rewrite the sort key")
	}

	// nil before sends the task to the back of its bucket.
	if _, err := svc.Reorder(ctx, "chris", c.ID, nil); err != nil {
		t.Fatalf("reorder to end: %v", err)
	}
	if got := order(); strings.Join(got, "") != "abc" {
		t.Fatalf("after move-to-end: %v", got)
	}

	// A peer in a different status bucket is not a valid anchor.
	svc.SetStatus(ctx, "chris", b.ID, domain.TaskInProgress)
	if _, err := svc.Reorder(ctx, "chris", a.ID, &b.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("cross-bucket reorder should fail, got %v", err)
	}
}

func dailyTemplate(svc *Service, start time.Time) (*domain.RecurringTemplate, error) {
	return svc.CreateTemplate(context.Background(), "chris", TemplateInput{
		Title:         "daily standup",
		PrimaryAgent:  "clio",
		StartAt:       &start,
		EveryInterval: 1,
		EveryUnit:     domain.EveryDay,
	})
}

func TestGeneratorDailyHorizon(t *testing.T) {
	svc, _, _, now := newTestService(GeneratorConfig{MaxPerRun: 50})
	ctx := context.Background()

	// Daily at 14:00, started yesterday; it is 10:00 today.
	start := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	tpl, err := dailyTemplate(svc, start)
	if err != nil {
		t.Fatalf("template: %v", err)
	}

	res, err := svc.RunGenerator(ctx, "chris", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Generated != 14 || len(res.Errors) != 0 {
		t.Fatalf("first run: %+v", res)
	}

	res, _ = svc.RunGenerator(ctx, "chris", "")
	if res.Generated != 0 {
		t.Fatalf("immediate rerun should generate nothing: %+v", res)
	}

	*now = now.AddDate(0, 0, 1)
	res, _ = svc.RunGenerator(ctx, "chris", tpl.ID)
	if res.Generated != 1 {
		t.Fatalf("one more day should yield one instance: %+v", res)
	}
}

func TestGeneratorPerRunCap(t *testing.T) {
	svc, repo, _, _ := newTestService(GeneratorConfig{MaxPerRun: 10})
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	if _, err := dailyTemplate(svc, start); err != nil {
		t.Fatalf("template: %v", err)
	}

	res, _ := svc.RunGenerator(ctx, "chris", "")
	if res.Generated != 10 {
		t.Fatalf("first run should hit the cap: %+v", res)
	}
	res, _ = svc.RunGenerator(ctx, "chris", "")
	if res.Generated != 4 {
		t.Fatalf("second run should drain the remainder: %+v", res)
	}
	res, _ = svc.RunGenerator(ctx, "chris", "")
	if res.Generated != 0 {
		t.Fatalf("third run should be empty: %+v", res)
	}
	if len(repo.tasks) != 14 {
		t.Fatalf("expected 14 instances total, got %d", len(repo.tasks))
	}
}

func TestGeneratorRepeatCount(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{MaxPerRun: 50})
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	tpl, _ := dailyTemplate(svc, start)
	three := 3
	if _, err := svc.UpdateTemplate(ctx, tpl.ID, TemplatePatch{RepeatCount: &three}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	res, _ := svc.RunGenerator(ctx, "chris", "")
	if res.Generated != 3 {
		t.Fatalf("repeat count should stop generation: %+v", res)
	}
	res, _ = svc.RunGenerator(ctx, "chris", "")
	if res.Generated != 0 {
		t.Fatalf("limit already reached: %+v", res)
	}
}

func TestGeneratorSkipsDisabledAndFuture(t *testing.T) {
	svc, _, _, now := newTestService(GeneratorConfig{})
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	tpl, _ := dailyTemplate(svc, start)
	svc.SetTemplateEnabled(ctx, tpl.ID, false)

	futureStart := now.AddDate(0, 1, 0)
	dailyTemplate(svc, futureStart)

	res, err := svc.RunGenerator(ctx, "chris", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Generated != 0 {
		t.Fatalf("disabled and not-yet-started templates must not generate: %+v", res)
	}
}

func TestGeneratorInstanceShape(t *testing.T) {
	svc, repo, _, _ := newTestService(GeneratorConfig{MaxPerRun: 1})
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	tpl, _ := dailyTemplate(svc, start)

	if _, err := svc.RunGenerator(ctx, "chris", tpl.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.tasks) != 1 {
		t.Fatalf("expected one instance, got %d", len(repo.tasks))
	}
	inst := repo.tasks[0]
	if inst.Status != domain.TaskQueued || inst.CreatorUserID != "chris" {
		t.Fatalf("instance shape wrong: %+v", inst)
	}
	if inst.AssigneeUserID == nil || *inst.AssigneeUserID != "clio" {
		t.Fatalf("instance should go to the primary agent: %+v", inst)
	}
	if inst.RecurringTemplateID == nil || inst.RecurringInstanceAt == nil {
		t.Fatalf("instance must carry its template linkage: %+v", inst)
	}
	want := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	if !inst.RecurringInstanceAt.Equal(want) {
		t.Fatalf("instance at %v, want %v", inst.RecurringInstanceAt, want)
	}
}

func TestTemplateValidation(t *testing.T) {
	svc, _, _, _ := newTestService(GeneratorConfig{})
	ctx := context.Background()

	base := TemplateInput{Title: "t", EveryInterval: 1, EveryUnit: domain.EveryDay}

	bad := base
	bad.EveryInterval = 0
	if _, err := svc.CreateTemplate(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero interval should fail, got %v", err)
	}
	bad = base
	bad.EveryUnit = "fortnight"
	if _, err := svc.CreateTemplate(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad unit should fail, got %v", err)
	}
	bad = base
	bad.DaysOfWeek = []string{"funday"}
	if _, err := svc.CreateTemplate(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad weekday should fail, got %v", err)
	}
	bad = base
	h := 9
	bad.BetweenHoursStart = &h
	if _, err := svc.CreateTemplate(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("lone hour bound should fail, got %v", err)
	}
	bad = base
	bad.Timezone = "Not/AZone"
	if _, err := svc.CreateTemplate(ctx, "chris", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad timezone should fail, got %v", err)
	}
}
