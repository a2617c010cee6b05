// Package mailbox implements the per-recipient message engine: send with
// dedup, list/get, ack, reply threading, full-text search, and the
// response-waiting commitment flag.
//
// The service layer contains all business logic and publishes bus events
// for live viewers. It depends on the Repository interface defined in
// this package and should never import from the api layer.
//
// The Postgres implementation lives in repository/postgres/.
package mailbox
