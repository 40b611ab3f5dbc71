package outbox_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messagehandler/aggregate-sourcing-go/outbox"
)

func Test_NewConfig_WithDefaults(t *testing.T) {
	// act
	config, err := outbox.NewConfig("group-1", "topic-1")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "group-1", config.ConsumerGroup)
	assert.Equal(t, "topic-1", config.Destination)
	assert.Equal(t, 100*time.Millisecond, config.PollInterval)
	assert.Equal(t, 100, config.BatchSize)
}

func Test_NewConfig_WithOptions(t *testing.T) {
	// act
	config, err := outbox.NewConfig("group-1", "topic-1",
		outbox.WithPollInterval(time.Second),
		outbox.WithBatchSize(10))

	// assert
	require.NoError(t, err)
	assert.Equal(t, time.Second, config.PollInterval)
	assert.Equal(t, 10, config.BatchSize)
}

func Test_NewConfig_Validation(t *testing.T) {
	_, err := outbox.NewConfig("", "topic-1")
	assert.ErrorIs(t, err, outbox.ErrEmptyConsumerGroup)

	_, err = outbox.NewConfig("group-1", "")
	assert.ErrorIs(t, err, outbox.ErrEmptyDestination)

	_, err = outbox.NewConfig("group-1", "topic-1", outbox.WithPollInterval(0))
	assert.ErrorIs(t, err, outbox.ErrInvalidPollInterval)

	_, err = outbox.NewConfig("group-1", "topic-1", outbox.WithBatchSize(-1))
	assert.ErrorIs(t, err, outbox.ErrInvalidBatchSize)
}

func Test_NewConfigFromEnv(t *testing.T) {
	// arrange
	t.Setenv("OUTBOX_CONSUMER_GROUP", "env-group")
	t.Setenv("OUTBOX_DESTINATION", "env-topic")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")

	// act
	config, err := outbox.NewConfigFromEnv()

	// assert
	require.NoError(t, err)
	assert.Equal(t, "env-group", config.ConsumerGroup)
	assert.Equal(t, "env-topic", config.Destination)
	assert.Equal(t, 250*time.Millisecond, config.PollInterval)
	assert.Equal(t, 50, config.BatchSize)
}

func Test_NewConfigFromEnv_WithMissingConsumerGroup(t *testing.T) {
	// arrange
	t.Setenv("OUTBOX_CONSUMER_GROUP", "")
	t.Setenv("OUTBOX_DESTINATION", "env-topic")

	// act
	_, err := outbox.NewConfigFromEnv()

	// assert
	assert.ErrorIs(t, err, outbox.ErrEmptyConsumerGroup)
}
