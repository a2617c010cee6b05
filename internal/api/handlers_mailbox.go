package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/pkg/httputil"
	"github.com/hivehq/hive/internal/service/mailbox"
)

// messageIDParam parses the {id} route parameter. Writes a 400 and
// returns false when it is not a decimal id.
func messageIDParam(w http.ResponseWriter, r *http.Request) (domain.MessageID, bool) {
	id, err := domain.ParseMessageID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid message id")
		return 0, false
	}
	return id, true
}

func intQuery(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func timeQuery(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		httputil.BadRequest(w, name+" must be RFC 3339")
		return nil, false
	}
	return &t, true
}

func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	recipient := chi.URLParam(r, "recipient")

	var in mailbox.SendInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	m, err := h.mailbox.Send(r.Context(), ident.User, recipient, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.Created(w, map[string]any{"message": m})
}

func (h *Handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	opts := mailbox.ListOptions{
		Limit:  intQuery(r, "limit"),
		Cursor: r.URL.Query().Get("cursor"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.MessageStatus(s)
		if st != domain.MessageUnread && st != domain.MessageRead {
			httputil.BadRequest(w, "status must be unread or read")
			return
		}
		opts.Status = &st
	}
	if s := r.URL.Query().Get("sinceId"); s != "" {
		id, err := domain.ParseMessageID(s)
		if err != nil {
			httputil.BadRequest(w, "invalid sinceId")
			return
		}
		opts.SinceID = &id
	}

	msgs, next, err := h.mailbox.List(r.Context(), ident.User, opts)
	if err != nil {
		respondErr(w, err)
		return
	}
	resp := map[string]any{"messages": msgs}
	if next != "" {
		resp["nextCursor"] = next
	}
	httputil.OK(w, resp)
}

func (h *Handlers) searchMessages(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	q := mailbox.SearchQuery{
		Q:     r.URL.Query().Get("q"),
		Limit: intQuery(r, "limit"),
	}
	var ok bool
	if q.From, ok = timeQuery(w, r, "from"); !ok {
		return
	}
	if q.To, ok = timeQuery(w, r, "to"); !ok {
		return
	}

	msgs, err := h.mailbox.Search(r.Context(), ident.User, q)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"messages": msgs})
}

func (h *Handlers) getMessage(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id, ok := messageIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.mailbox.Get(r.Context(), ident.User, id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"message": m})
}

func (h *Handlers) ackMessage(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id, ok := messageIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.mailbox.Ack(r.Context(), ident.User, id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"message": m})
}

func (h *Handlers) batchAckMessages(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var in struct {
		IDs []domain.MessageID `json:"ids"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	res, err := h.mailbox.BatchAck(r.Context(), ident.User, in.IDs)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, res)
}

func (h *Handlers) replyMessage(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id, ok := messageIDParam(w, r)
	if !ok {
		return
	}
	var in mailbox.ReplyInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	m, err := h.mailbox.Reply(r.Context(), ident.User, id, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.Created(w, map[string]any{"message": m})
}

func (h *Handlers) markWaiting(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id, ok := messageIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.mailbox.MarkWaiting(r.Context(), ident.User, id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"message": m})
}

func (h *Handlers) clearWaiting(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id, ok := messageIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.mailbox.ClearWaiting(r.Context(), ident.User, id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"message": m})
}

func (h *Handlers) listWaiting(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	msgs, err := h.mailbox.Waiting(r.Context(), ident.User)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (h *Handlers) listWaitingOnOthers(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	msgs, err := h.mailbox.WaitingOnOthers(r.Context(), ident.User)
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"messages": msgs, "count": len(msgs)})
}

// myCounts is the cheap poll fallback for clients without a stream.
func (h *Handlers) myCounts(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	unread, waiting, err := h.mailbox.Counts(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"unread":  unread[ident.User],
		"waiting": waiting[ident.User],
	})
}

func (h *Handlers) waitingCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.mailbox.WaitingCounts(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	httputil.OK(w, map[string]any{"counts": counts})
}

func (h *Handlers) getPresence(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	snap := h.presence.Snapshot(r.Context(), ident.User, ident.Admin)
	httputil.OK(w, map[string]any{"presence": snap})
}
