package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/hivehq/hive/internal/auth"
	"github.com/hivehq/hive/internal/pkg/httputil"
)

type ctxKey int

const identityKey ctxKey = iota

// requireAuth resolves the bearer token, stores the identity on the
// request context, and records API activity for presence. Recording is
// fire-and-forget: presence is best-effort and must not slow requests.
func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := h.auth.FromRequest(r)
		if !ok {
			httputil.Unauthorized(w, "missing or invalid token")
			return
		}
		go h.presence.RecordAPIActivity(ident.User)
		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the authenticated identity set by requireAuth.
func identityFrom(r *http.Request) auth.Identity {
	ident, _ := r.Context().Value(identityKey).(auth.Identity)
	return ident
}

// stripAPIPrefix makes /api/x and /x equivalent, so both proxied and
// direct clients hit the same route table.
func stripAPIPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" {
			r.URL.Path = "/"
		} else if strings.HasPrefix(r.URL.Path, "/api/") {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api")
		}
		next.ServeHTTP(w, r)
	})
}
