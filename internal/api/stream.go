package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/domain"
	"github.com/hivehq/hive/internal/pkg/httputil"
	"github.com/hivehq/hive/internal/pkg/logger"
	"github.com/hivehq/hive/internal/presence"
	"github.com/hivehq/hive/internal/service/broadcast"
)

// sseFrame is one server-sent event ready to write.
type sseFrame struct {
	event string
	data  []byte
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, f sseFrame) error {
	if f.event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", f.event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", f.data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalError(w, fmt.Errorf("streaming unsupported by connection"))
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

// enqueue marshals payload and offers it to the connection buffer. A
// full buffer drops the frame; durable state is in the database and the
// client re-syncs with its next poll.
func enqueue(ch chan<- sseFrame, user, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("stream marshal failed", "event", event, "err", err)
		return
	}
	select {
	case ch <- sseFrame{event: event, data: data}:
	default:
		logger.Warn("stream buffer full, dropping frame", "user", user, "event", event)
	}
}

// mailboxStream is the main UI push channel: mailbox events for the
// viewer, presence transitions, and swarm activity. Holding the stream
// open marks the viewer online.
func (h *Handlers) mailboxStream(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	ch := make(chan sseFrame, h.cfg.Push.BufferSize)
	unsubs := []func(){
		h.bus.Subscribe(bus.MailboxTopic(ident.User), func(p any) {
			enqueue(ch, ident.User, "mailbox", p)
		}),
		h.bus.Subscribe(bus.TopicPresence, func(p any) {
			ev, ok := p.(presence.Event)
			if !ok {
				return
			}
			enqueue(ch, ident.User, "presence", redactPresence(ev, ident.User, ident.Admin))
		}),
		h.bus.Subscribe(bus.TopicSwarm, func(p any) {
			enqueue(ch, ident.User, "swarm", p)
		}),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	connID := uuid.NewString()
	h.presence.Add(connID, ident.User, presence.KindUI)
	defer h.presence.Remove(connID)

	connected, _ := json.Marshal(map[string]string{"user": ident.User})
	if err := writeFrame(w, flusher, sseFrame{event: "connected", data: connected}); err != nil {
		return
	}
	snap := h.presence.Snapshot(r.Context(), ident.User, ident.Admin)
	snapData, _ := json.Marshal(map[string]any{"presence": snap})
	if err := writeFrame(w, flusher, sseFrame{event: "presence", data: snapData}); err != nil {
		return
	}

	h.pump(w, r, flusher, ch)
}

// redactPresence strips other users' counts from a presence event for
// non-admin viewers, mirroring Tracker.Snapshot.
func redactPresence(ev presence.Event, viewer string, admin bool) presence.Event {
	if admin {
		return ev
	}
	rows := make([]presence.Info, len(ev.Presence))
	copy(rows, ev.Presence)
	for i := range rows {
		if rows[i].User != viewer {
			rows[i].Unread = 0
			rows[i].Waiting = 0
		}
	}
	ev.Presence = rows
	return ev
}

// buzzStream tails the broadcast feed. On connect it replays recent
// events (or everything after ?since=), oldest first, then follows
// live publishes the viewer may see.
func (h *Handlers) buzzStream(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		var err error
		if since, err = strconv.ParseInt(s, 10, 64); err != nil {
			httputil.BadRequest(w, "invalid since")
			return
		}
	}

	// Subscribe before the replay query so events landing between the
	// two are not lost; the id watermark below drops the overlap.
	ch := make(chan domain.Event, h.cfg.Push.BufferSize)
	unsub := h.bus.Subscribe(bus.TopicBuzz, func(p any) {
		ev, ok := p.(domain.Event)
		if !ok {
			return
		}
		if !ident.Admin && !ev.VisibleTo(ident.User) {
			return
		}
		select {
		case ch <- ev:
		default:
			logger.Warn("stream buffer full, dropping frame", "user", ident.User, "event", "buzz")
		}
	})
	defer unsub()

	var replay []domain.Event
	var err error
	if since > 0 {
		replay, err = h.broadcast.ListEvents(r.Context(), ident.User, ident.Admin,
			broadcast.EventQuery{SinceID: since, Limit: h.cfg.Broadcast.ReplayCount})
		if err == nil {
			// ListEvents is newest first; replay runs oldest first.
			for i, j := 0, len(replay)-1; i < j; i, j = i+1, j-1 {
				replay[i], replay[j] = replay[j], replay[i]
			}
		}
	} else {
		replay, err = h.broadcast.Recent(r.Context(), ident.User, ident.Admin, h.cfg.Broadcast.ReplayCount)
	}
	if err != nil {
		respondErr(w, err)
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	// The presence snapshot belongs to the UI stream; agent tails get
	// only the connection marker.
	connected, _ := json.Marshal(map[string]string{"user": ident.User})
	if werr := writeFrame(w, flusher, sseFrame{event: "connected", data: connected}); werr != nil {
		return
	}

	lastID := since
	for i := range replay {
		data, merr := json.Marshal(&replay[i])
		if merr != nil {
			continue
		}
		if werr := writeFrame(w, flusher, sseFrame{event: "buzz", data: data}); werr != nil {
			return
		}
		if replay[i].ID > lastID {
			lastID = replay[i].ID
		}
	}

	keepalive := time.NewTicker(h.cfg.Push.Keepalive())
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if ev.ID <= lastID {
				continue
			}
			lastID = ev.ID
			data, merr := json.Marshal(&ev)
			if merr != nil {
				continue
			}
			if werr := writeFrame(w, flusher, sseFrame{event: "buzz", data: data}); werr != nil {
				return
			}
		case <-keepalive.C:
			if _, werr := fmt.Fprint(w, ": keepalive\n\n"); werr != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// pump writes buffered frames and keepalive comments until the client
// disconnects or a write fails.
func (h *Handlers) pump(w http.ResponseWriter, r *http.Request, flusher http.Flusher, ch <-chan sseFrame) {
	keepalive := time.NewTicker(h.cfg.Push.Keepalive())
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case f := <-ch:
			if err := writeFrame(w, flusher, f); err != nil {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
