package presence

import (
	"context"
	"testing"
	"time"

	"github.com/hivehq/hive/internal/bus"
)

var roster = []string{"chris", "clio"}

func newTestTracker(b *bus.Bus) (*Tracker, *time.Time) {
	t := New(b, roster, 5*time.Minute, 30*time.Second)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return now }
	return t, &now
}

func collectEvents(b *bus.Bus) *[]Event {
	var events []Event
	b.Subscribe(bus.TopicPresence, func(p any) {
		events = append(events, p.(Event))
	})
	return &events
}

func TestUIConnectionLifecycle(t *testing.T) {
	b := bus.New()
	tr, _ := newTestTracker(b)
	events := collectEvents(b)

	tr.Add("c1", "chris", KindUI)
	if !tr.Online("chris") {
		t.Fatal("chris should be online with a UI connection")
	}
	if len(*events) != 1 || (*events)[0].Type != "join" || (*events)[0].User != "chris" {
		t.Fatalf("expected join event, got %+v", *events)
	}

	// Second connection for the same user: no extra join.
	tr.Add("c2", "chris", KindUI)
	if len(*events) != 1 {
		t.Fatalf("duplicate join emitted: %+v", *events)
	}

	tr.Remove("c1")
	if !tr.Online("chris") {
		t.Fatal("still one UI connection, should remain online")
	}
	if len(*events) != 1 {
		t.Fatal("leave emitted while a connection remains")
	}

	tr.Remove("c2")
	if tr.Online("chris") {
		t.Fatal("chris should be offline after last disconnect")
	}
	if len(*events) != 2 || (*events)[1].Type != "leave" {
		t.Fatalf("expected leave event, got %+v", *events)
	}
}

func TestAPIActivityKeepsUserOnline(t *testing.T) {
	b := bus.New()
	tr, now := newTestTracker(b)
	events := collectEvents(b)

	tr.RecordAPIActivity("clio")
	if !tr.Online("clio") {
		t.Fatal("API activity should mark clio online")
	}
	if len(*events) != 1 || (*events)[0].Type != "join" {
		t.Fatalf("expected join, got %+v", *events)
	}

	// Within the 5 minute window.
	*now = now.Add(4 * time.Minute)
	if !tr.Online("clio") {
		t.Fatal("clio should still be online inside the timeout")
	}

	// Expired: the sweeper notices and emits leave.
	*now = now.Add(2 * time.Minute)
	tr.sweep()
	if tr.Online("clio") {
		t.Fatal("clio should be offline after timeout")
	}
	if len(*events) != 2 || (*events)[1].Type != "leave" {
		t.Fatalf("expected leave from sweeper, got %+v", *events)
	}
}

func TestSweepIgnoresUIConnections(t *testing.T) {
	b := bus.New()
	tr, now := newTestTracker(b)
	events := collectEvents(b)

	tr.Add("c1", "chris", KindUI)
	tr.RecordAPIActivity("chris")
	*now = now.Add(10 * time.Minute)
	tr.sweep()

	if !tr.Online("chris") {
		t.Fatal("UI connection must keep user online past API timeout")
	}
	for _, e := range *events {
		if e.Type == "leave" {
			t.Fatalf("unexpected leave: %+v", e)
		}
	}
}

func TestSnapshotCountVisibility(t *testing.T) {
	b := bus.New()
	tr, _ := newTestTracker(b)
	tr.SetCounts(func(context.Context) (map[string]int, map[string]int, error) {
		return map[string]int{"chris": 3, "clio": 7}, map[string]int{"clio": 2}, nil
	})

	admin := tr.Snapshot(context.Background(), "chris", true)
	if admin[1].User != "clio" || admin[1].Unread != 7 || admin[1].Waiting != 2 {
		t.Fatalf("admin should see clio's counts: %+v", admin)
	}

	self := tr.Snapshot(context.Background(), "chris", false)
	if self[0].User != "chris" || self[0].Unread != 3 {
		t.Fatalf("viewer should see own counts: %+v", self)
	}
	if self[1].Unread != 0 || self[1].Waiting != 0 {
		t.Fatalf("non-admin must not see others' counts: %+v", self)
	}
}

func TestSnapshotLastSeen(t *testing.T) {
	b := bus.New()
	tr, now := newTestTracker(b)

	tr.Add("c1", "clio", KindUI)
	joined := *now
	*now = now.Add(time.Minute)
	tr.Remove("c1")

	snap := tr.Snapshot(context.Background(), "clio", false)
	var clio *Info
	for i := range snap {
		if snap[i].User == "clio" {
			clio = &snap[i]
		}
	}
	if clio == nil || clio.Online {
		t.Fatalf("clio should be present and offline: %+v", snap)
	}
	if clio.LastSeen == nil || !clio.LastSeen.After(joined) {
		t.Fatalf("lastSeen should be the disconnect time: %+v", clio.LastSeen)
	}
}
