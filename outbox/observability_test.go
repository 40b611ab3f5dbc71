package outbox_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore/memoryengine"
	"github.com/messagehandler/aggregate-sourcing-go/outbox"
	"github.com/messagehandler/aggregate-sourcing-go/testutil/observability"
)

func Test_Pump_RecordsMetricsAndLogs(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 2)

	logSpy := observability.NewLogHandlerSpy(false)
	metricsSpy := observability.NewMetricsCollectorSpy()
	publisher := &recordingPublisher{}

	pump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t),
		outbox.WithLogger(slog.New(logSpy)),
		outbox.WithMetrics(metricsSpy))
	require.NoError(t, err)

	// act
	require.NoError(t, pump.Start(context.Background()))

	require.Eventually(t, func() bool { return publisher.deliveredCount() == 2 },
		time.Second, time.Millisecond)
	pump.Stop()

	// assert
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "outbox pump started"))
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "outbox pump stopped"))
	assert.True(t, logSpy.HasLogWithAttr(slog.LevelDebug, "outbox event published", "position"))
	assert.Equal(t, 2, metricsSpy.CounterCount("outbox_published_total"))
	assert.Equal(t, 2, metricsSpy.DurationCount("outbox_publish_duration_seconds"))
}

func Test_Pump_RecordsRetryMetricsOnPublishFailure(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 1)

	logSpy := observability.NewLogHandlerSpy(false)
	metricsSpy := observability.NewMetricsCollectorSpy()
	publisher := &recordingPublisher{failuresLeft: 1}

	pump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t),
		outbox.WithLogger(slog.New(logSpy)),
		outbox.WithMetrics(metricsSpy))
	require.NoError(t, err)

	// act
	require.NoError(t, pump.Start(context.Background()))

	require.Eventually(t, func() bool { return publisher.deliveredCount() == 1 },
		5*time.Second, time.Millisecond)
	pump.Stop()

	// assert
	assert.True(t, logSpy.HasLog(slog.LevelWarn, "publishing outbox event failed, backing off"))
	assert.Equal(t, 1, metricsSpy.CounterCount("outbox_publish_retries_total"))
	assert.Equal(t, 1, metricsSpy.CounterCount("outbox_published_total"))
}
