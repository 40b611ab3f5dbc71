package booking_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore/memoryengine"
	"github.com/messagehandler/aggregate-sourcing-go/example/booking"
	"github.com/messagehandler/aggregate-sourcing-go/repository"
)

func Test_Book_WhenNotYetBooked(t *testing.T) {
	// arrange
	b := booking.NewBooking("booking-1")

	// act
	result := b.Book("PO-4711", time.Now(), eventstore.NewEventMetadata("someone"))

	// assert
	assert.True(t, result.IsSuccess())
	assert.True(t, b.IsBooked())
	assert.Equal(t, "PO-4711", b.Reference())
	require.Len(t, b.PendingEvents(), 1)
	assert.Equal(t, booking.PurchaseOrderBookedEventType, b.PendingEvents()[0].Event.EventType())
}

func Test_Book_WhenAlreadyBooked(t *testing.T) {
	// arrange
	b := booking.NewBooking("booking-1")
	result := b.Book("PO-4711", time.Now(), eventstore.NewEventMetadata("someone"))
	require.True(t, result.IsSuccess())

	// act
	result = b.Book("PO-9999", time.Now(), eventstore.NewEventMetadata("someone"))

	// assert
	assert.True(t, result.IsFailure())
	assert.Equal(t, booking.FailureReasonAlreadyBooked, result.FailureReason())
	assert.Equal(t, "PO-4711", b.Reference(), "the first booking must stay untouched")
	assert.Len(t, b.PendingEvents(), 1, "the failed command must not emit an event")
}

func Test_DecodeEvent_RoundTrip(t *testing.T) {
	// arrange
	original := booking.BuildPurchaseOrderBooked("booking-1", "PO-4711", time.Now())
	payloadJSON, err := json.Marshal(original)
	require.NoError(t, err)

	storableEvent, err := eventstore.BuildStorableEventWithEmptyMetadata(
		"booking-1", 1, original.EventType(), original.HasOccurredAt(), payloadJSON)
	require.NoError(t, err)

	// act
	decoded, err := booking.NewBooking("booking-1").DecodeEvent(storableEvent)

	// assert
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func Test_DecodeEvent_WithUnknownEventType(t *testing.T) {
	// arrange
	storableEvent, err := eventstore.BuildStorableEventWithEmptyMetadata(
		"booking-1", 1, "SomethingElseEntirely", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	// act
	_, err = booking.NewBooking("booking-1").DecodeEvent(storableEvent)

	// assert
	assert.ErrorIs(t, err, booking.ErrMappingToDomainEventUnknownEventType)
}

func Test_Booking_EndToEnd_WithRepository(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memoryengine.NewEventStore()

	firstRepo := repository.New(store)
	first := booking.NewBooking("booking-1")
	require.NoError(t, firstRepo.Get(ctx, first))

	result := first.Book("PO-4711", time.Now(), eventstore.NewEventMetadata("someone"))
	require.True(t, result.IsSuccess())

	_, err := firstRepo.Flush(ctx)
	require.NoError(t, err)

	// act: a second unit of work replays and tries to book again
	secondRepo := repository.New(store)
	second := booking.NewBooking("booking-1")
	require.NoError(t, secondRepo.GetExisting(ctx, second))

	result = second.Book("PO-9999", time.Now(), eventstore.NewEventMetadata("someone else"))

	// assert
	assert.True(t, result.IsFailure())
	assert.Equal(t, booking.FailureReasonAlreadyBooked, result.FailureReason())
	assert.Equal(t, uint(1), second.Version())
	assert.Equal(t, "PO-4711", second.Reference())
}
