package booking

import (
	"time"
)

// BookingIDString represents a booking identifier, used as the stream id.
type BookingIDString = string

// PurchaseOrderBookedEventType is the event type identifier.
const PurchaseOrderBookedEventType = "PurchaseOrderBooked"

// PurchaseOrderBooked represents when a purchase order was booked.
type PurchaseOrderBooked struct {
	BookingID  BookingIDString
	Reference  string
	OccurredAt time.Time
}

// BuildPurchaseOrderBooked creates a new PurchaseOrderBooked event.
func BuildPurchaseOrderBooked(
	bookingID BookingIDString,
	reference string,
	occurredAt time.Time,
) PurchaseOrderBooked {

	event := PurchaseOrderBooked{
		BookingID:  bookingID,
		Reference:  reference,
		OccurredAt: occurredAt.UTC().Truncate(time.Microsecond),
	}

	return event
}

// EventType returns the event type identifier.
func (e PurchaseOrderBooked) EventType() string {
	return PurchaseOrderBookedEventType
}

// HasOccurredAt returns when this event occurred.
func (e PurchaseOrderBooked) HasOccurredAt() time.Time {
	return e.OccurredAt
}
