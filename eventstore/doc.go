// Package eventstore provides the core abstractions and types for
// event-sourced aggregates persisted as append-only event streams.
//
// This package defines the storage boundary consumed by the repository and the
// outbox pump, and the scalar event DTOs used across different event store
// implementations.
//
// Key types:
//   - StorableEvent: an event as it is appended to and read from a stream
//   - SequencedEvent: a stored event together with its global append position
//   - EventMetadata: causation/correlation/actor context recorded per event
//   - StreamReader / StreamAppender / GlobalReader: the storage boundary
//
// Common usage pattern:
//
//	history, err := store.ReadStream(ctx, streamID)
//	// replay history into an aggregate, decide, emit ...
//	newVersion, err := store.Append(ctx, streamID, expectedVersion, newEvents...)
//	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
//		// reload, re-decide, retry
//	}
package eventstore
