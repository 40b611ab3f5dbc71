package eventstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

func Test_BuildStorableEvent_WithValidInput(t *testing.T) {
	// arrange
	occurredAt := time.Now().UTC()

	// act
	event, err := eventstore.BuildStorableEvent(
		"stream-1", 1, "SomethingHappened", occurredAt, []byte(`{"foo":"bar"}`), []byte(`{"actor":"test"}`))

	// assert
	require.NoError(t, err)
	assert.Equal(t, "stream-1", event.StreamID)
	assert.Equal(t, uint(1), event.SequenceNumber)
	assert.Equal(t, "SomethingHappened", event.EventType)
	assert.Equal(t, occurredAt, event.OccurredAt)
}

func Test_BuildStorableEvent_WithEmptyStreamID(t *testing.T) {
	// act
	_, err := eventstore.BuildStorableEvent(
		"", 1, "SomethingHappened", time.Now(), []byte(`{}`), []byte(`{}`))

	// assert
	assert.ErrorIs(t, err, eventstore.ErrEmptyStreamID)
}

func Test_BuildStorableEvent_WithZeroSequenceNumber(t *testing.T) {
	// act
	_, err := eventstore.BuildStorableEvent(
		"stream-1", 0, "SomethingHappened", time.Now(), []byte(`{}`), []byte(`{}`))

	// assert
	assert.ErrorIs(t, err, eventstore.ErrZeroSequenceNumber)
}

func Test_BuildStorableEvent_WithInvalidPayloadJSON(t *testing.T) {
	// act
	_, err := eventstore.BuildStorableEvent(
		"stream-1", 1, "SomethingHappened", time.Now(), []byte(`{not json`), []byte(`{}`))

	// assert
	assert.ErrorIs(t, err, eventstore.ErrInvalidPayloadJSON)
}

func Test_BuildStorableEvent_WithInvalidMetadataJSON(t *testing.T) {
	// act
	_, err := eventstore.BuildStorableEvent(
		"stream-1", 1, "SomethingHappened", time.Now(), []byte(`{}`), []byte(`{not json`))

	// assert
	assert.ErrorIs(t, err, eventstore.ErrInvalidMetadataJSON)
}

func Test_BuildStorableEventWithEmptyMetadata(t *testing.T) {
	// act
	event, err := eventstore.BuildStorableEventWithEmptyMetadata(
		"stream-1", 2, "SomethingHappened", time.Now(), []byte(`{"foo":"bar"}`))

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(event.MetadataJSON))
}
