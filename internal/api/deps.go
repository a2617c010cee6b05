package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/hivehq/hive/internal/auth"
	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/config"
	"github.com/hivehq/hive/internal/pkg/httputil"
	"github.com/hivehq/hive/internal/presence"
	"github.com/hivehq/hive/internal/service/broadcast"
	"github.com/hivehq/hive/internal/service/mailbox"
	"github.com/hivehq/hive/internal/service/swarm"
)

// Handlers bundles everything the HTTP layer needs.
type Handlers struct {
	cfg       *config.Config
	auth      *auth.Manager
	bus       *bus.Bus
	presence  *presence.Tracker
	mailbox   *mailbox.Service
	broadcast *broadcast.Service
	swarm     *swarm.Service
	db        *sql.DB
}

// NewHandlers wires the HTTP layer to the services.
func NewHandlers(
	cfg *config.Config,
	am *auth.Manager,
	b *bus.Bus,
	tracker *presence.Tracker,
	mb *mailbox.Service,
	bc *broadcast.Service,
	sw *swarm.Service,
	db *sql.DB,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		auth:      am,
		bus:       b,
		presence:  tracker,
		mailbox:   mb,
		broadcast: bc,
		swarm:     sw,
		db:        db,
	}
}

// respondErr maps service-layer sentinel errors onto the error envelope.
// Resources that exist but belong to someone else read as 404 so ids and
// tokens cannot be enumerated.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mailbox.ErrNotFound),
		errors.Is(err, broadcast.ErrNotFound),
		errors.Is(err, swarm.ErrNotFound):
		httputil.NotFound(w, "not found")
	case errors.Is(err, mailbox.ErrForbidden),
		errors.Is(err, broadcast.ErrForbidden):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, mailbox.ErrValidation),
		errors.Is(err, broadcast.ErrValidation),
		errors.Is(err, swarm.ErrValidation):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
