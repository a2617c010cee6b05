// Package swarm implements the task tracker: projects, the task status
// machine with blocked-by-predecessor enforcement, lexicographic sort-key
// reordering, the per-task audit log, and the recurring-template
// generator. Every mutation is mirrored into the broadcast feed and
// published on the swarm bus topic.
package swarm
