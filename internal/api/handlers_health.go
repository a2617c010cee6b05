package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hivehq/hive/internal/pkg/httputil"
)

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"status": "ok"})
}

// readyz checks the database so load balancers stop routing to an
// instance that lost its connection pool.
func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		httputil.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
			"db":     false,
		})
		return
	}
	httputil.OK(w, map[string]any{"status": "ok", "db": true})
}
