// Package auth resolves bearer tokens to roster identities.
//
// Hive has a fixed roster: the token table is loaded once at startup
// from config and is immutable until restart. There are no sessions to
// expire and no external identity provider.
package auth

import (
	"net/http"
	"strings"

	"github.com/hivehq/hive/internal/config"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	User  string
	Admin bool
}

// Manager resolves bearer tokens against the configured roster.
type Manager struct {
	cfg config.AuthConfig
}

// NewManager creates an auth manager from the loaded configuration.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Identify resolves a raw token to an identity. Returns false for
// unknown tokens.
func (m *Manager) Identify(token string) (Identity, bool) {
	user, ok := m.cfg.Tokens[token]
	if !ok {
		return Identity{}, false
	}
	return Identity{User: user, Admin: m.cfg.IsAdmin(user)}, true
}

// FromRequest extracts and resolves the Authorization bearer token.
func (m *Manager) FromRequest(r *http.Request) (Identity, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return Identity{}, false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, false
	}
	return m.Identify(strings.TrimSpace(parts[1]))
}

// InRoster reports whether user is a known roster member.
func (m *Manager) InRoster(user string) bool {
	return m.cfg.InRoster(user)
}

// Roster returns the fixed user roster.
func (m *Manager) Roster() []string {
	return m.cfg.Roster
}
