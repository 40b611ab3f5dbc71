package memoryengine

import (
	"context"
	"sync"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

// EventStore is a thread-safe in-memory implementation of the event store
// boundary, intended for tests, examples, and local development.
// It honors the same optimistic concurrency contract as the Postgres engine:
// an append conditioned on a stale expected version fails with
// eventstore.ErrConcurrencyConflict and appends nothing.
type EventStore struct {
	mu      sync.RWMutex
	streams map[eventstore.StreamIDString]eventstore.StorableEvents
	all     eventstore.SequencedEvents
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[eventstore.StreamIDString]eventstore.StorableEvents),
	}
}

// ReadStream returns all events of the stream in ascending sequence number order.
// A stream that does not exist yields an empty slice.
func (es *EventStore) ReadStream(ctx context.Context, streamID eventstore.StreamIDString) (
	eventstore.StorableEvents,
	error,
) {

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if streamID == "" {
		return nil, eventstore.ErrEmptyStreamID
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	stream := es.streams[streamID]
	history := make(eventstore.StorableEvents, len(stream))
	copy(history, stream)

	return history, nil
}

// ReadAllAfter returns up to limit events with a global position greater than
// afterPosition, in ascending position order.
func (es *EventStore) ReadAllAfter(ctx context.Context, afterPosition eventstore.PositionUint, limit int) (
	eventstore.SequencedEvents,
	error,
) {

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	batch := make(eventstore.SequencedEvents, 0)

	for _, sequencedEvent := range es.all {
		if sequencedEvent.Position <= afterPosition {
			continue
		}

		batch = append(batch, sequencedEvent)

		if limit > 0 && len(batch) == limit {
			break
		}
	}

	return batch, nil
}

// Append appends the events to the stream if the stream's current version
// equals expectedVersion, assigning each event the next global position.
// Returns the new stream version, or eventstore.ErrConcurrencyConflict.
func (es *EventStore) Append(
	ctx context.Context,
	streamID eventstore.StreamIDString,
	expectedVersion eventstore.VersionUint,
	event eventstore.StorableEvent,
	additionalEvents ...eventstore.StorableEvent,
) (eventstore.VersionUint, error) {

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	if streamID == "" {
		return 0, eventstore.ErrEmptyStreamID
	}

	allEvents := eventstore.StorableEvents{event}
	allEvents = append(allEvents, additionalEvents...)

	es.mu.Lock()
	defer es.mu.Unlock()

	currentVersion := eventstore.VersionUint(len(es.streams[streamID]))
	if currentVersion != expectedVersion {
		return 0, eventstore.ErrConcurrencyConflict
	}

	for i, e := range allEvents {
		if e.StreamID != streamID {
			return 0, eventstore.ErrStreamIDMismatch
		}

		if e.SequenceNumber != expectedVersion+eventstore.SequenceNumberUint(i)+1 {
			return 0, eventstore.ErrNonContiguousAppend
		}
	}

	for _, e := range allEvents {
		es.streams[streamID] = append(es.streams[streamID], e)
		es.all = append(es.all, eventstore.SequencedEvent{
			Position: eventstore.PositionUint(len(es.all) + 1),
			Event:    e,
		})
	}

	return expectedVersion + eventstore.VersionUint(len(allEvents)), nil
}

// MaxPosition returns the global position of the last appended event.
func (es *EventStore) MaxPosition() eventstore.PositionUint {
	es.mu.RLock()
	defer es.mu.RUnlock()

	return eventstore.PositionUint(len(es.all))
}
