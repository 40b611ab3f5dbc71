package booking

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/messagehandler/aggregate-sourcing-go/aggregate"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

var (
	// ErrMappingToDomainEventFailed is returned when domain event conversion fails.
	ErrMappingToDomainEventFailed = errors.New("mapping to domain event failed")

	// ErrMappingToDomainEventUnknownEventType is returned for unrecognized event types.
	ErrMappingToDomainEventUnknownEventType = errors.New("unknown event type")
)

// DecodeEvent converts a stored event back into this aggregate's domain event.
func (b *Booking) DecodeEvent(storableEvent eventstore.StorableEvent) (aggregate.Event, error) {
	switch storableEvent.EventType {
	case PurchaseOrderBookedEventType:
		return unmarshalPurchaseOrderBooked(storableEvent.PayloadJSON)

	default:
		return nil, errors.Join(ErrMappingToDomainEventFailed, ErrMappingToDomainEventUnknownEventType)
	}
}

func unmarshalPurchaseOrderBooked(payloadJSON []byte) (aggregate.Event, error) {
	payload := new(PurchaseOrderBooked)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, payload)
	if err != nil {
		return nil, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return *payload, nil
}
