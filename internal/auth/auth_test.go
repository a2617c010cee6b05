package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/hivehq/hive/internal/config"
)

func testManager() *Manager {
	return NewManager(config.AuthConfig{
		Roster: []string{"chris", "clio"},
		Tokens: map[string]string{"tok-chris": "chris", "tok-clio": "clio"},
		Admins: []string{"chris"},
	})
}

func TestIdentify(t *testing.T) {
	m := testManager()

	id, ok := m.Identify("tok-chris")
	if !ok {
		t.Fatal("expected token to resolve")
	}
	if id.User != "chris" || !id.Admin {
		t.Fatalf("unexpected identity: %+v", id)
	}

	id, ok = m.Identify("tok-clio")
	if !ok || id.Admin {
		t.Fatalf("clio should resolve as non-admin, got %+v ok=%v", id, ok)
	}

	if _, ok := m.Identify("bogus"); ok {
		t.Fatal("unknown token must not resolve")
	}
}

func TestFromRequest(t *testing.T) {
	m := testManager()

	r := httptest.NewRequest("GET", "/mailboxes/me/messages", nil)
	if _, ok := m.FromRequest(r); ok {
		t.Fatal("missing header must not resolve")
	}

	r.Header.Set("Authorization", "Bearer tok-chris")
	id, ok := m.FromRequest(r)
	if !ok || id.User != "chris" {
		t.Fatalf("bearer token should resolve, got %+v ok=%v", id, ok)
	}

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, ok := m.FromRequest(r); ok {
		t.Fatal("non-bearer scheme must not resolve")
	}
}
