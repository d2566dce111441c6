// Package store provides persistent storage for the hub using SQLite.
//
// # Data Models
//
//   - User: Registered account with bcrypt password hash
//   - Connection: Audit row recorded for each client attach
//   - Exchange: Completed question/answer pair handled by the agent,
//     tagged with its origin (cache, generated, fallback, canned)
//
// SQLiteStore implements the Store interface using modernc.org/sqlite,
// a pure-Go driver requiring no cgo. The schema is created automatically
// on open and WAL mode is enabled for concurrent reads.
//
// Pass ":memory:" as the path for an ephemeral database in tests.
package store
