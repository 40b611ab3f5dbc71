// Package memoryengine provides an in-memory implementation of the event store
// boundary for tests, examples, and local development.
//
// It enforces the same contracts as the PostgreSQL engine: per-stream
// optimistic concurrency on append and global append-order positions for
// outbox tailing.
package memoryengine
