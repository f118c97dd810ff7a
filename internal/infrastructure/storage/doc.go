// Package storage persists workspaces and their version history in SQLite
// so a server restart reopens every workspace at its latest snapshot.
//
// Writes run in transactions behind a circuit breaker: when the database
// keeps failing, snapshots fail fast and the in-memory workspace carries on.
package storage
