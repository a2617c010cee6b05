// Package broadcast implements the Buzz feed: webhook lifecycle,
// token-authenticated public ingest, the append-only event store, and
// per-viewer for_users filtering. The task tracker mirrors its mutations
// into this feed under the reserved "swarm" app name.
package broadcast
