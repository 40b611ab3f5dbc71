package eventstore

import (
	"context"
)

// StreamReader reads the full ordered history of one stream.
type StreamReader interface {
	// ReadStream returns all events of the stream in ascending sequence number
	// order. A stream that does not exist yields an empty slice, not an error.
	ReadStream(ctx context.Context, streamID StreamIDString) (StorableEvents, error)
}

// StreamAppender appends events to one stream with optimistic concurrency.
type StreamAppender interface {
	// Append appends the given events to the stream if and only if the stream's
	// current version equals expectedVersion at append time. Either all events
	// are appended contiguously or none are.
	//
	// Returns the new stream version on success, ErrConcurrencyConflict when
	// another writer appended concurrently, or a storage error otherwise.
	Append(
		ctx context.Context,
		streamID StreamIDString,
		expectedVersion VersionUint,
		event StorableEvent,
		additionalEvents ...StorableEvent,
	) (VersionUint, error)
}

// GlobalReader tails events across all streams in global append order.
// This is the read side of the outbox pump.
type GlobalReader interface {
	// ReadAllAfter returns up to limit events with a global position greater
	// than afterPosition, in ascending position order.
	ReadAllAfter(ctx context.Context, afterPosition PositionUint, limit int) (SequencedEvents, error)
}

// EventStore is the full storage boundary: per-stream reads and conditional
// appends for the repository, plus global tailing for the outbox pump.
type EventStore interface {
	StreamReader
	StreamAppender
	GlobalReader
}
