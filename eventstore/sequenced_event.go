package eventstore

// PositionUint is the global append-order position of an event across all streams.
type PositionUint = uint64

// SequencedEvents is an alias type for a slice of SequencedEvent.
type SequencedEvents = []SequencedEvent

// SequencedEvent is a StorableEvent together with the global append position
// the store assigned to it. The outbox pump tails the store in this order,
// which is best-effort FIFO by append time across streams, not causally
// guaranteed.
type SequencedEvent struct {
	Position PositionUint
	Event    StorableEvent
}
