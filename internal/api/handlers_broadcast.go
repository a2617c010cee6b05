package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/pkg/httputil"
	"github.com/hivehq/hive/internal/service/broadcast"
)

// webhookView is a webhook plus its derived ingest URL.
type webhookView struct {
	*domain.Webhook
	IngestURL string `json:"ingestUrl"`
}

func (h *Handlers) webhookView(w *domain.Webhook) webhookView {
	return webhookView{Webhook: w, IngestURL: h.broadcast.IngestURL(w)}
}

func (h *Handlers) createWebhook(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in broadcast.WebhookInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	wh, err := h.broadcast.CreateWebhook(r.Context(), ident.User, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.Created(w, map[string]any{"webhook": h.webhookView(wh)})
}

func (h *Handlers) listWebhooks(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	all := r.URL.Query().Get("all") == "true"

	hooks, err := h.broadcast.ListWebhooks(r.Context(), ident.User, ident.Admin, all)
	if err != nil {
		respondErr(w, err)
		return
	}
	views := make([]webhookView, 0, len(hooks))
	for i := range hooks {
		views = append(views, h.webhookView(&hooks[i]))
	}
	httputil.OK(w, map[string]any{"webhooks": views})
}

func (h *Handlers) getWebhook(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	wh, err := h.broadcast.GetWebhook(r.Context(), ident.User, ident.Admin, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"webhook": h.webhookView(wh)})
}

func (h *Handlers) setWebhookEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := identityFrom(r)

		wh, err := h.broadcast.SetEnabled(r.Context(), ident.User, ident.Admin, chi.URLParam(r, "id"), enabled)
		if err != nil {
			respondErr(w, err)
			return
		}
		httputil.OK(w, map[string]any{"webhook": h.webhookView(wh)})
	}
}

func (h *Handlers) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	if err := h.broadcast.DeleteWebhook(r.Context(), ident.User, ident.Admin, chi.URLParam(r, "id")); err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"status": "deleted"})
}

// ingest accepts a webhook delivery. Unauthenticated: the app name and
// token in the path are the credential.
func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Broadcast.MaxIngestBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.PayloadTooLarge(w, "body exceeds ingest limit")
			return
		}
		httputil.BadRequest(w, "unreadable body")
		return
	}

	ev, err := h.broadcast.Ingest(r.Context(),
		chi.URLParam(r, "appName"), chi.URLParam(r, "token"),
		r.Header.Get("Content-Type"), body)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"status": "ok", "id": strconv.FormatInt(ev.ID, 10)})
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	q := broadcast.EventQuery{
		App:   r.URL.Query().Get("app"),
		Limit: intQuery(r, "limit"),
	}
	if s := r.URL.Query().Get("since"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid since")
			return
		}
		q.SinceID = id
	}

	events, err := h.broadcast.ListEvents(r.Context(), ident.User, ident.Admin, q)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"events": events})
}
