package booking

import (
	"time"

	"github.com/messagehandler/aggregate-sourcing-go/aggregate"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

// FailureReasonAlreadyBooked is reported when Book targets a booking
// that already holds a purchase order.
const FailureReasonAlreadyBooked = "already booked"

// Booking is an aggregate recording at most one purchase order.
type Booking struct {
	*aggregate.Root

	booked    bool
	reference string
}

// NewBooking creates an empty Booking for the given stream id, ready to be
// replayed by a repository or to accept its first command.
func NewBooking(bookingID BookingIDString) *Booking {
	b := &Booking{
		Root: aggregate.NewRoot(bookingID),
	}

	b.On(PurchaseOrderBookedEventType, func(event aggregate.Event) {
		booked := event.(PurchaseOrderBooked)
		b.booked = true
		b.reference = booked.Reference
	})

	return b
}

// IsBooked tells whether a purchase order was recorded on this booking.
func (b *Booking) IsBooked() bool {
	return b.booked
}

// Reference returns the recorded purchase order reference, empty when none.
func (b *Booking) Reference() string {
	return b.reference
}

// Book records a purchase order on this booking.
// Booking twice fails with FailureReasonAlreadyBooked; the first booking stays
// untouched and no event is emitted.
func (b *Booking) Book(reference string, occurredAt time.Time, metadata eventstore.EventMetadata) aggregate.Result {
	if b.booked {
		return aggregate.FailureResult(FailureReasonAlreadyBooked)
	}

	b.Emit(BuildPurchaseOrderBooked(b.ID(), reference, occurredAt), metadata)

	return aggregate.SuccessResult()
}
