package domain

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// AppNamePattern constrains webhook app names: lowercase, starts with a
// letter, then letters/digits/underscore/hyphen.
var AppNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// SwarmAppName is the reserved app name used for task-tracker events
// mirrored into the broadcast feed.
const SwarmAppName = "swarm"

// Webhook is a named ingest credential for one external producer.
type Webhook struct {
	ID        string    `json:"id" db:"id"`
	AppName   string    `json:"appName" db:"app_name"`
	Title     string    `json:"title" db:"title"`
	Owner     string    `json:"owner" db:"owner"`
	Token     string    `json:"token" db:"token"`
	ForUsers  string    `json:"for" db:"for_users"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Event is one append-only broadcast feed entry. Title and ForUsers are
// snapshotted from the webhook at ingest time so later webhook edits do
// not retroactively retitle history.
type Event struct {
	ID          int64           `json:"id" db:"id"`
	WebhookID   *string         `json:"webhookId" db:"webhook_id"`
	AppName     string          `json:"appName" db:"app_name"`
	Title       string          `json:"title" db:"title"`
	ForUsers    string          `json:"for" db:"for_users"`
	ContentType string          `json:"contentType" db:"content_type"`
	BodyText    *string         `json:"bodyText" db:"body_text"`
	BodyJSON    json.RawMessage `json:"bodyJson" db:"body_json"`
	ReceivedAt  time.Time       `json:"receivedAt" db:"received_at"`
}

// VisibleTo reports whether the event's for_users filter admits the
// given user. An empty filter admits everyone. The filter is a
// comma-separated list, trimmed and case-insensitive.
func (e *Event) VisibleTo(user string) bool {
	return ForUsersAdmits(e.ForUsers, user)
}

// ForUsersAdmits evaluates a comma-separated for_users filter.
func ForUsersAdmits(forUsers, user string) bool {
	if strings.TrimSpace(forUsers) == "" {
		return true
	}
	for _, u := range strings.Split(forUsers, ",") {
		if strings.EqualFold(strings.TrimSpace(u), user) {
			return true
		}
	}
	return false
}
