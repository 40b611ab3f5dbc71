package eventstore

import (
	"encoding/json"
	"time"
)

// StreamIDString identifies the stream owned by one aggregate instance.
type StreamIDString = string

// SequenceNumberUint is the position of an event within its stream, starting at 1.
type SequenceNumberUint = uint

// VersionUint is the current length of a stream, i.e. the sequence number of its last event.
type VersionUint = uint

// StorableEvents is an alias type for a slice of StorableEvent.
type StorableEvents = []StorableEvent

// StorableEvent is a DTO (data transfer object) used by the event store to append events and read them back.
//
// It is built on scalars to be completely agnostic of the implementation of Domain Events in the client code.
//
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildStorableEvent
//   - BuildStorableEventWithEmptyMetadata
type StorableEvent struct {
	StreamID       StreamIDString
	SequenceNumber SequenceNumberUint
	EventType      string
	OccurredAt     time.Time
	PayloadJSON    []byte
	MetadataJSON   []byte
}

// BuildStorableEvent is a factory method for StorableEvent.
//
// It populates the StorableEvent with the given scalar input.
// Returns an error if streamID is empty, sequenceNumber is zero,
// or payloadJSON / metadataJSON are not valid JSON.
func BuildStorableEvent(
	streamID StreamIDString,
	sequenceNumber SequenceNumberUint,
	eventType string,
	occurredAt time.Time,
	payloadJSON []byte,
	metadataJSON []byte,
) (StorableEvent, error) {

	if streamID == "" {
		return StorableEvent{}, ErrEmptyStreamID
	}

	if sequenceNumber == 0 {
		return StorableEvent{}, ErrZeroSequenceNumber
	}

	if !json.Valid(payloadJSON) {
		return StorableEvent{}, ErrInvalidPayloadJSON
	}

	if !json.Valid(metadataJSON) {
		return StorableEvent{}, ErrInvalidMetadataJSON
	}

	return StorableEvent{
		StreamID:       streamID,
		SequenceNumber: sequenceNumber,
		EventType:      eventType,
		OccurredAt:     occurredAt,
		PayloadJSON:    payloadJSON,
		MetadataJSON:   metadataJSON,
	}, nil
}

// BuildStorableEventWithEmptyMetadata is a factory method for StorableEvent.
//
// It populates the StorableEvent with the given scalar input and creates valid empty JSON for MetadataJSON.
// Returns an error if payloadJSON is not valid JSON.
func BuildStorableEventWithEmptyMetadata(
	streamID StreamIDString,
	sequenceNumber SequenceNumberUint,
	eventType string,
	occurredAt time.Time,
	payloadJSON []byte,
) (StorableEvent, error) {

	return BuildStorableEvent(streamID, sequenceNumber, eventType, occurredAt, payloadJSON, []byte("{}"))
}
