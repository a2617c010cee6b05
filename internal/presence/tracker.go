// Package presence tracks which roster users are live right now.
//
// A user is online while they hold at least one UI stream connection or
// have made an authenticated API call within the configured timeout.
// Transitions publish join/leave events on the presence topic; a
// background sweeper catches API activity that expires between requests.
// Presence is eventually consistent: a tab close plus reopen may emit a
// leave/join pair, which clients tolerate visually.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/pkg/logger"
)

// Kind distinguishes UI stream connections from API activity.
type Kind string

const (
	KindUI  Kind = "ui"
	KindAPI Kind = "api"
)

// Info is one user's presence row as sent to clients.
type Info struct {
	User     string     `json:"user"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
	Unread   int        `json:"unread"`
	Waiting  int        `json:"waiting"`
}

// Event is published on the presence topic when a user joins or leaves.
type Event struct {
	Type     string `json:"type"` // "join" or "leave"
	User     string `json:"user"`
	Presence []Info `json:"presence"`
}

// CountsFunc supplies per-user unread and waiting counts for presence
// snapshots. Failures degrade to zero counts.
type CountsFunc func(ctx context.Context) (unread, waiting map[string]int, err error)

type conn struct {
	user     string
	joinedAt time.Time
	kind     Kind
}

// Tracker maintains the live connection and activity maps.
type Tracker struct {
	bus        *bus.Bus
	roster     []string
	apiTimeout time.Duration
	sweepEvery time.Duration

	mu       sync.Mutex
	conns    map[string]conn
	lastAPI  map[string]time.Time
	lastSeen map[string]time.Time
	online   map[string]bool

	counts CountsFunc
	now    func() time.Time
}

// New creates a tracker for the fixed roster.
func New(b *bus.Bus, roster []string, apiTimeout, sweepEvery time.Duration) *Tracker {
	return &Tracker{
		bus:        b,
		roster:     roster,
		apiTimeout: apiTimeout,
		sweepEvery: sweepEvery,
		conns:      make(map[string]conn),
		lastAPI:    make(map[string]time.Time),
		lastSeen:   make(map[string]time.Time),
		online:     make(map[string]bool),
		now:        time.Now,
	}
}

// SetCounts wires the unread/waiting count source. Called once during
// startup after the mailbox service exists.
func (t *Tracker) SetCounts(f CountsFunc) { t.counts = f }

// Add registers a connection. Publishes a join event if the user
// transitioned offline→online.
func (t *Tracker) Add(connID, user string, kind Kind) {
	t.mu.Lock()
	now := t.now()
	t.conns[connID] = conn{user: user, joinedAt: now, kind: kind}
	t.lastSeen[user] = now
	joined := !t.online[user]
	if joined {
		t.online[user] = true
	}
	t.mu.Unlock()

	if joined {
		t.publish("join", user)
	}
}

// Remove unregisters a connection and updates last_seen. Publishes a
// leave event if the user is now fully offline.
func (t *Tracker) Remove(connID string) {
	t.mu.Lock()
	c, ok := t.conns[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.conns, connID)
	now := t.now()
	t.lastSeen[c.user] = now
	left := t.online[c.user] && !t.onlineLocked(c.user, now)
	if left {
		t.online[c.user] = false
	}
	t.mu.Unlock()

	if left {
		t.publish("leave", c.user)
	}
}

// RecordAPIActivity notes an authenticated API call. May transition the
// user online. Invoked fire-and-forget from the request dispatcher.
func (t *Tracker) RecordAPIActivity(user string) {
	t.mu.Lock()
	now := t.now()
	t.lastAPI[user] = now
	t.lastSeen[user] = now
	joined := !t.online[user]
	if joined {
		t.online[user] = true
	}
	t.mu.Unlock()

	if joined {
		t.publish("join", user)
	}
}

// Online reports whether user is currently considered online.
func (t *Tracker) Online(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onlineLocked(user, t.now())
}

// onlineLocked computes liveness from raw state: any UI connection, or
// API activity within the timeout. Callers hold t.mu.
func (t *Tracker) onlineLocked(user string, now time.Time) bool {
	for _, c := range t.conns {
		if c.user == user {
			return true
		}
	}
	if last, ok := t.lastAPI[user]; ok && now.Sub(last) < t.apiTimeout {
		return true
	}
	return false
}

// Run sweeps for expired API activity until ctx is cancelled. Users
// whose activity lapsed between sweeps, and who hold no UI connection,
// get a leave event.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	var left []string
	t.mu.Lock()
	now := t.now()
	for user, wasOnline := range t.online {
		if wasOnline && !t.onlineLocked(user, now) {
			t.online[user] = false
			t.lastSeen[user] = now
			left = append(left, user)
		}
	}
	t.mu.Unlock()

	for _, user := range left {
		t.publish("leave", user)
	}
}

// Snapshot builds the presence rows visible to a viewer. Admins see
// real unread/waiting counts for everyone; other users see real counts
// only on their own row. Online state and lastSeen are visible to all.
func (t *Tracker) Snapshot(ctx context.Context, viewer string, admin bool) []Info {
	full := t.fullSnapshot(ctx)
	if admin {
		return full
	}
	for i := range full {
		if full[i].User != viewer {
			full[i].Unread = 0
			full[i].Waiting = 0
		}
	}
	return full
}

// fullSnapshot returns the admin view: every roster user with real counts.
func (t *Tracker) fullSnapshot(ctx context.Context) []Info {
	var unread, waiting map[string]int
	if t.counts != nil {
		var err error
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		unread, waiting, err = t.counts(cctx)
		cancel()
		if err != nil {
			logger.Warn("presence counts unavailable", "err", err)
			unread, waiting = nil, nil
		}
	}

	t.mu.Lock()
	now := t.now()
	out := make([]Info, 0, len(t.roster))
	for _, user := range t.roster {
		info := Info{
			User:    user,
			Online:  t.onlineLocked(user, now),
			Unread:  unread[user],
			Waiting: waiting[user],
		}
		if ls, ok := t.lastSeen[user]; ok {
			seen := ls
			info.LastSeen = &seen
		}
		out = append(out, info)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

func (t *Tracker) publish(typ, user string) {
	t.bus.Publish(bus.TopicPresence, Event{
		Type:     typ,
		User:     user,
		Presence: t.fullSnapshot(context.Background()),
	})
}
