package swarm

import (
	"context"

	"github.com/hivehq/hive/internal/service/broadcast"
)

// Event is the structured payload published on the swarm bus topic for
// UIs that want updates without parsing the broadcast feed.
type Event struct {
	Type      string `json:"type"`
	TaskID    string `json:"taskId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	Actor     string `json:"actor"`
}

// Feed mirrors task-tracker mutations into the broadcast store. Satisfied
// by the broadcast service.
type Feed interface {
	RecordSwarmEvent(ctx context.Context, title string, body broadcast.SwarmBody) error
}

// Event types mirrored into the feed.
const (
	EventProjectCreated  = "swarm.project.created"
	EventProjectUpdated  = "swarm.project.updated"
	EventProjectArchived = "swarm.project.archived"
	EventTaskCreated     = "swarm.task.created"
	EventTaskUpdated     = "swarm.task.updated"
	EventTaskAssigned    = "swarm.task.assigned"
	EventTaskStatus      = "swarm.task.status_changed"
	EventTaskReordered   = "swarm.task.reordered"
)
