package outbox_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore/memoryengine"
	"github.com/messagehandler/aggregate-sourcing-go/outbox"
)

// recordingPublisher collects delivered events and can fail a configured
// number of times before confirming.
type recordingPublisher struct {
	mu           sync.Mutex
	delivered    []eventstore.SequencedEvent
	failuresLeft int
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventstore.SequencedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failuresLeft > 0 {
		p.failuresLeft--
		return errors.New("destination unavailable")
	}

	p.delivered = append(p.delivered, event)

	return nil
}

func (p *recordingPublisher) deliveredCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.delivered)
}

func (p *recordingPublisher) deliveredPositions() []eventstore.PositionUint {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]eventstore.PositionUint, 0, len(p.delivered))
	for _, event := range p.delivered {
		positions = append(positions, event.Position)
	}

	return positions
}

// blockingCursorStore blocks Load until the test releases it, then fails,
// so lifecycle overlap can be driven deterministically.
type blockingCursorStore struct {
	loadEntered chan struct{}
	release     chan struct{}
}

func (s *blockingCursorStore) Load(context.Context, string) (eventstore.PositionUint, error) {
	close(s.loadEntered)
	<-s.release

	return 0, errors.New("cursor backend unavailable")
}

func (s *blockingCursorStore) Save(context.Context, string, eventstore.PositionUint) error {
	return nil
}

func appendEvents(t *testing.T, store *memoryengine.EventStore, streamID string, count int) {
	t.Helper()

	for seq := uint(1); seq <= uint(count); seq++ {
		event, err := eventstore.BuildStorableEventWithEmptyMetadata(
			streamID, seq, "SomethingHappened", time.Now(), []byte(fmt.Sprintf(`{"seq":%d}`, seq)))
		require.NoError(t, err)

		_, err = store.Append(context.Background(), streamID, seq-1, event)
		require.NoError(t, err)
	}
}

func pumpConfig(t *testing.T) outbox.Config {
	t.Helper()

	config, err := outbox.NewConfig("test-group", "test-destination",
		outbox.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	return config
}

func Test_Pump_PublishesCommittedEventsInGlobalOrder(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 3)

	publisher := &recordingPublisher{}
	pump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)

	// act
	require.NoError(t, pump.Start(context.Background()))
	defer pump.Stop()

	// assert
	assert.Eventually(t, func() bool { return publisher.deliveredCount() == 3 },
		time.Second, time.Millisecond)
	assert.Equal(t, []eventstore.PositionUint{1, 2, 3}, publisher.deliveredPositions())
}

func Test_Pump_PicksUpEventsAppendedWhileRunning(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	publisher := &recordingPublisher{}
	pump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)

	require.NoError(t, pump.Start(context.Background()))
	defer pump.Stop()

	// act
	appendEvents(t, store, "stream-1", 2)

	// assert
	assert.Eventually(t, func() bool { return publisher.deliveredCount() == 2 },
		time.Second, time.Millisecond)
}

func Test_Pump_ResumesFromTheStoredCursor(t *testing.T) {
	// arrange: the consumer group already processed positions 1 and 2
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 3)

	cursors := outbox.NewMemoryCursorStore()
	require.NoError(t, cursors.Save(context.Background(), "test-group", 2))

	publisher := &recordingPublisher{}
	pump, err := outbox.NewPump(store, publisher, cursors, pumpConfig(t))
	require.NoError(t, err)

	// act
	require.NoError(t, pump.Start(context.Background()))
	defer pump.Stop()

	// assert
	assert.Eventually(t, func() bool { return publisher.deliveredCount() == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, []eventstore.PositionUint{3}, publisher.deliveredPositions())
}

func Test_Pump_RetriesFailedPublishesWithoutSkipping(t *testing.T) {
	// arrange: the destination rejects the first two attempts
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 2)

	publisher := &recordingPublisher{failuresLeft: 2}
	cursors := outbox.NewMemoryCursorStore()
	pump, err := outbox.NewPump(store, publisher, cursors, pumpConfig(t))
	require.NoError(t, err)

	// act
	require.NoError(t, pump.Start(context.Background()))
	defer pump.Stop()

	// assert: both events arrive, in order, nothing skipped
	assert.Eventually(t, func() bool { return publisher.deliveredCount() == 2 },
		5*time.Second, time.Millisecond)
	assert.Equal(t, []eventstore.PositionUint{1, 2}, publisher.deliveredPositions())

	cursor, loadErr := cursors.Load(context.Background(), "test-group")
	require.NoError(t, loadErr)
	assert.Equal(t, eventstore.PositionUint(2), cursor)
}

func Test_Pump_RepublishesAfterRestartWithLostCursor(t *testing.T) {
	// arrange: first pump delivers everything, then its cursor is lost
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 2)

	publisher := &recordingPublisher{}

	firstPump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)
	require.NoError(t, firstPump.Start(context.Background()))

	require.Eventually(t, func() bool { return publisher.deliveredCount() == 2 },
		time.Second, time.Millisecond)
	firstPump.Stop()

	// act: a fresh pump starts with an empty cursor store
	secondPump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)
	require.NoError(t, secondPump.Start(context.Background()))
	defer secondPump.Stop()

	// assert: the events are delivered again, at-least-once
	assert.Eventually(t, func() bool { return publisher.deliveredCount() == 4 },
		time.Second, time.Millisecond)
	assert.Equal(t, []eventstore.PositionUint{1, 2, 1, 2}, publisher.deliveredPositions())
}

func Test_Pump_StopIsGracefulAndIdempotent(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	pump, err := outbox.NewPump(store, &recordingPublisher{}, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)
	require.NoError(t, pump.Start(context.Background()))

	// act + assert: both calls return without hanging
	pump.Stop()
	pump.Stop()
}

func Test_Pump_StopReturnsWhenItOverlapsAFailingStart(t *testing.T) {
	// arrange: the cursor backend hangs and then fails the load
	store := memoryengine.NewEventStore()
	cursors := &blockingCursorStore{loadEntered: make(chan struct{}), release: make(chan struct{})}
	pump, err := outbox.NewPump(store, &recordingPublisher{}, cursors, pumpConfig(t))
	require.NoError(t, err)

	startErr := make(chan error, 1)
	go func() { startErr <- pump.Start(context.Background()) }()
	<-cursors.loadEntered

	// act: Stop races the Start that is about to fail
	stopped := make(chan struct{})
	go func() {
		pump.Stop()
		close(stopped)
	}()
	close(cursors.release)

	// assert: both calls return, nothing hangs
	select {
	case err := <-startErr:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the failed Start")
	}
}

func Test_Pump_CanBeStartedAgainAfterStop(t *testing.T) {
	// arrange: one pump instance lives through two start/stop cycles
	store := memoryengine.NewEventStore()
	appendEvents(t, store, "stream-1", 1)

	publisher := &recordingPublisher{}
	pump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)

	require.NoError(t, pump.Start(context.Background()))
	require.Eventually(t, func() bool { return publisher.deliveredCount() == 1 },
		time.Second, time.Millisecond)
	pump.Stop()

	// act: more events arrive and the same instance is started again
	appendEvents(t, store, "stream-2", 1)
	require.NoError(t, pump.Start(context.Background()))
	defer pump.Stop()

	// assert: the restarted pump publishes the new event
	assert.Eventually(t, func() bool { return publisher.deliveredCount() == 2 },
		time.Second, time.Millisecond)
	assert.Equal(t, []eventstore.PositionUint{1, 2}, publisher.deliveredPositions())
}

func Test_Pump_StartTwice(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	pump, err := outbox.NewPump(store, &recordingPublisher{}, outbox.NewMemoryCursorStore(), pumpConfig(t))
	require.NoError(t, err)

	require.NoError(t, pump.Start(context.Background()))
	defer pump.Stop()

	// act
	err = pump.Start(context.Background())

	// assert
	assert.ErrorIs(t, err, outbox.ErrAlreadyStarted)
}

func Test_NewPump_ValidatesItsDependencies(t *testing.T) {
	store := memoryengine.NewEventStore()
	publisher := &recordingPublisher{}
	cursors := outbox.NewMemoryCursorStore()
	config := pumpConfig(t)

	_, err := outbox.NewPump(nil, publisher, cursors, config)
	assert.ErrorIs(t, err, outbox.ErrNilStore)

	_, err = outbox.NewPump(store, nil, cursors, config)
	assert.ErrorIs(t, err, outbox.ErrNilPublisher)

	_, err = outbox.NewPump(store, publisher, nil, config)
	assert.ErrorIs(t, err, outbox.ErrNilCursorStore)

	_, err = outbox.NewPump(store, publisher, cursors, outbox.Config{})
	assert.ErrorIs(t, err, outbox.ErrEmptyConsumerGroup)
}
