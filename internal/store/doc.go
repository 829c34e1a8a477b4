// Package store provides SQLite-backed durable storage for tablekit rows.
//
// A Store is both a fetch.Source (Load) and a fetch.Persister (SaveRow,
// DeleteRow), so an adapter opened over a database writes its mutations
// through before committing them to its cache.
//
// # Ordering
//
// Rows keep the position they were imported at. Every read uses
// ORDER BY position ASC, id COLLATE BINARY ASC so repeated loads return
// the same order and the resolver's stable sort stays deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Tags and metadata are stored as JSON TEXT with HTML escaping disabled.
// Schema changes are numbered migrations tracked in PRAGMA user_version.
package store
