package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/pkg/httputil"
	"github.com/hivehq/hive/internal/service/swarm"
)

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in swarm.ProjectInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	p, err := h.swarm.CreateProject(r.Context(), ident.User, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.Created(w, map[string]any{"project": p})
}

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("includeArchived") == "true"
	projects, err := h.swarm.ListProjects(r.Context(), includeArchived)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"projects": projects})
}

func (h *Handlers) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.swarm.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"project": p})
}

func (h *Handlers) updateProject(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var patch swarm.ProjectPatch
	if !httputil.Decode(w, r, &patch) {
		return
	}
	p, err := h.swarm.UpdateProject(r.Context(), ident.User, chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"project": p})
}

func (h *Handlers) setProjectArchived(archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := identityFrom(r)

		p, err := h.swarm.SetProjectArchived(r.Context(), ident.User, chi.URLParam(r, "id"), archived)
		if err != nil {
			respondErr(w, err)
			return
		}
		httputil.OK(w, map[string]any{"project": p})
	}
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in swarm.TaskInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.swarm.CreateTask(r.Context(), ident.User, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.Created(w, map[string]any{"task": t})
}

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := swarm.TaskQuery{
		Sort:  r.URL.Query().Get("sort"),
		Limit: intQuery(r, "limit"),
	}
	if s := r.URL.Query().Get("projectId"); s != "" {
		q.ProjectID = &s
	}
	if s := r.URL.Query().Get("assignee"); s != "" {
		q.Assignee = &s
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.TaskStatus(s)
		if !domain.ValidTaskStatus(st) {
			httputil.BadRequest(w, "unknown status")
			return
		}
		q.Status = &st
	}

	tasks, err := h.swarm.ListTasks(r.Context(), q)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"tasks": tasks})
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.swarm.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"task": t})
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var patch swarm.TaskPatch
	if !httputil.Decode(w, r, &patch) {
		return
	}
	t, err := h.swarm.UpdateTask(r.Context(), ident.User, chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"task": t})
}

func (h *Handlers) claimTask(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	t, err := h.swarm.Claim(r.Context(), ident.User, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"task": t})
}

func (h *Handlers) setTaskStatus(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in struct {
		Status domain.TaskStatus `json:"status"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.swarm.SetStatus(r.Context(), ident.User, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"task": t})
}

func (h *Handlers) reorderTask(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in struct {
		BeforeTaskID *string `json:"beforeTaskId"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.swarm.Reorder(r.Context(), ident.User, chi.URLParam(r, "id"), in.BeforeTaskID)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"task": t})
}

func (h *Handlers) taskEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.swarm.TaskEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"events": events})
}

func (h *Handlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in swarm.TemplateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.swarm.CreateTemplate(r.Context(), ident.User, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.Created(w, map[string]any{"template": t})
}

func (h *Handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.swarm.ListTemplates(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"templates": templates})
}

func (h *Handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.swarm.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"template": t})
}

func (h *Handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var patch swarm.TemplatePatch
	if !httputil.Decode(w, r, &patch) {
		return
	}
	t, err := h.swarm.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"template": t})
}

func (h *Handlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.swarm.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"status": "deleted"})
}

func (h *Handlers) setTemplateEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.swarm.SetTemplateEnabled(r.Context(), chi.URLParam(r, "id"), enabled)
		if err != nil {
			respondErr(w, err)
			return
		}
		httputil.OK(w, map[string]any{"template": t})
	}
}

func (h *Handlers) runGenerator(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	res, err := h.swarm.RunGenerator(r.Context(), ident.User, r.URL.Query().Get("templateId"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, res)
}
