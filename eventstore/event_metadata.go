package eventstore

import (
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// ErrMappingToEventMetadataFailed is returned when metadata conversion fails.
var ErrMappingToEventMetadataFailed = errors.New("mapping to event metadata failed")

// EventIDString represents a unique event identifier.
type EventIDString = string

// CausationIDString represents the id of the event or command that caused this event.
type CausationIDString = string

// CorrelationIDString represents the id correlating related events across streams.
type CorrelationIDString = string

// ActorString represents the human or system actor that triggered the event.
type ActorString = string

// EventMetadata contains the context recorded with every event: its identity,
// the causal back-reference chain, and who triggered it. The causation chain is
// a back-reference only, never an ownership edge.
type EventMetadata struct {
	EventID       EventIDString
	CausationID   CausationIDString
	CorrelationID CorrelationIDString
	Actor         ActorString
}

// BuildEventMetadata creates EventMetadata from UUID values and an actor.
func BuildEventMetadata(eventID uuid.UUID, causationID uuid.UUID, correlationID uuid.UUID, actor ActorString) EventMetadata {
	return EventMetadata{
		EventID:       eventID.String(),
		CausationID:   causationID.String(),
		CorrelationID: correlationID.String(),
		Actor:         actor,
	}
}

// NewEventMetadata creates EventMetadata for an event that starts a new causal
// chain: the event id doubles as causation and correlation id.
func NewEventMetadata(actor ActorString) EventMetadata {
	uid := uuid.New()
	return BuildEventMetadata(uid, uid, uid, actor)
}

// EventMetadataFrom extracts EventMetadata from a StorableEvent.
func EventMetadataFrom(storableEvent StorableEvent) (EventMetadata, error) {
	metadata := new(EventMetadata)
	err := jsoniter.ConfigFastest.Unmarshal(storableEvent.MetadataJSON, metadata)
	if err != nil {
		return EventMetadata{}, errors.Join(ErrMappingToEventMetadataFailed, err)
	}

	return *metadata, nil
}
