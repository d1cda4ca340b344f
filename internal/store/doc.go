// Package store provides persistent storage for the dispatch call log
// using SQLite.
//
// # Overview
//
// Every trigger hitting the gateway is recorded, whether or not it reached
// a workstation. The log is append-only: records are never updated or
// deleted by the application.
//
// # Results
//
// Each record carries one of four results:
//
//   - SENT: the event was written to a live channel
//   - SEND_FAILED: a channel existed but the write failed
//   - NO_EXTENSION: no live channel existed for the agent
//   - NO_AGENT: the trigger carried no agent identifier
//
// # Implementation
//
// SQLiteStore implements the Store interface on modernc.org/sqlite (pure
// Go, no CGO). WAL mode is enabled for concurrent reads during writes, and
// the schema is created automatically on first open.
package store
