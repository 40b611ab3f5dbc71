package aggregate

import (
	"errors"
	"time"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

var (
	// ErrHistoryOutOfOrder is returned when replayed history has sequence numbers
	// that are out of order or not contiguous. This is fatal: it indicates store
	// corruption, not a recoverable condition.
	ErrHistoryOutOfOrder = errors.New("history sequence numbers are out of order or not contiguous")

	// ErrReplayWithPendingEvents is returned when Replay is called on an
	// aggregate that has uncommitted pending events.
	ErrReplayWithPendingEvents = errors.New("cannot replay history over uncommitted pending events")
)

// Event represents a business event that has occurred in the domain.
type Event interface {
	// EventType returns the string identifier for this event type.
	EventType() string

	// HasOccurredAt returns when this event occurred.
	HasOccurredAt() time.Time
}

// RecordedEvent is a committed domain event together with the sequence number
// it holds in its stream.
type RecordedEvent struct {
	SequenceNumber eventstore.SequenceNumberUint
	Event          Event
}

// RecordedEvents is an alias type for a slice of RecordedEvent.
type RecordedEvents = []RecordedEvent

// PendingEvent is an emitted but not yet committed domain event, carrying the
// sequence number the aggregate assigned to it and the metadata to record with it.
type PendingEvent struct {
	SequenceNumber eventstore.SequenceNumberUint
	Event          Event
	Metadata       eventstore.EventMetadata
}

// PendingEvents is an alias type for a slice of PendingEvent.
type PendingEvents = []PendingEvent

// TransitionFunc applies an event to the aggregate's internal state.
// The same function runs during replay and directly after emit, so state
// derived from pending events can never diverge from a fresh replay.
type TransitionFunc func(event Event)

// Root is the embeddable base of an event-sourced aggregate. It owns the
// identity, the version, the pending event buffer, and the transition table.
//
// A Root instance is owned exclusively by one logical unit of work and must
// not be shared across concurrent commands.
type Root struct {
	id          eventstore.StreamIDString
	version     eventstore.VersionUint
	pending     PendingEvents
	transitions map[string]TransitionFunc
}

// NewRoot creates an uninitialized aggregate root for the given stream id.
func NewRoot(id eventstore.StreamIDString) *Root {
	return &Root{
		id:          id,
		transitions: make(map[string]TransitionFunc),
	}
}

// ID returns the aggregate's identity, which equals its stream id.
func (r *Root) ID() eventstore.StreamIDString {
	return r.id
}

// Version returns the sequence number of the last applied event,
// including pending events.
func (r *Root) Version() eventstore.VersionUint {
	return r.version
}

// On registers the transition function for one event type.
// Registering the same event type again replaces the previous function.
func (r *Root) On(eventType string, transition TransitionFunc) {
	r.transitions[eventType] = transition
}

// Replay applies the given history in ascending sequence number order and
// advances the version to the last applied sequence number.
//
// An empty history is valid: a brand-new aggregate simply stays at version 0.
// History that does not continue contiguously from the current version fails
// with ErrHistoryOutOfOrder.
func (r *Root) Replay(history RecordedEvents) error {
	if len(r.pending) != 0 {
		return ErrReplayWithPendingEvents
	}

	for _, recorded := range history {
		if recorded.SequenceNumber != r.version+1 {
			return ErrHistoryOutOfOrder
		}

		r.apply(recorded.Event)
		r.version = recorded.SequenceNumber
	}

	return nil
}

// Emit assigns the event the next sequence number, buffers it as pending, and
// immediately applies it to internal state through the same transition table
// used by Replay.
func (r *Root) Emit(event Event, metadata eventstore.EventMetadata) {
	r.version++

	r.pending = append(r.pending, PendingEvent{
		SequenceNumber: r.version,
		Event:          event,
		Metadata:       metadata,
	})

	r.apply(event)
}

// PendingEvents returns the emitted but uncommitted events in emission order.
// It does not clear the buffer.
func (r *Root) PendingEvents() PendingEvents {
	return r.pending
}

// ClearPending drops the pending event buffer. It is called by the repository
// after a successful commit and must not be called by domain code.
func (r *Root) ClearPending() {
	r.pending = nil
}

// apply dispatches the event to its registered transition function.
// Event types without a registered transition are skipped; skipping is
// symmetric between replay and emit, so the equivalence law holds either way.
func (r *Root) apply(event Event) {
	if transition, ok := r.transitions[event.EventType()]; ok {
		transition(event)
	}
}
