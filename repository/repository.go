package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/messagehandler/aggregate-sourcing-go/aggregate"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

const (
	logMsgAggregateLoaded  = "aggregate loaded"
	logMsgAggregateFlushed = "aggregate flushed"
	logMsgFlushFailed      = "flushing aggregate failed"
)

const (
	logAttrStreamID   = "stream_id"
	logAttrVersion    = "version"
	logAttrNewVersion = "new_version"
	logAttrEventCount = "event_count"
	logAttrError      = "error"
)

const (
	metricFlushDuration   = "repository_flush_duration_seconds"
	metricFlushConflicts  = "repository_flush_conflicts_total"
	metricEventsCommitted = "repository_events_committed_total"
	metricLabelStatus     = "status"
	metricStatusOK        = "ok"
	metricStatusConflict  = "conflict"
	metricStatusError     = "error"
)

// Aggregate is what the repository needs from an event-sourced aggregate.
// Embedding aggregate.Root provides everything except DecodeEvent, which maps
// a stored event back into the aggregate's own domain event types.
type Aggregate interface {
	ID() eventstore.StreamIDString
	Version() eventstore.VersionUint
	Replay(history aggregate.RecordedEvents) error
	PendingEvents() aggregate.PendingEvents
	ClearPending()
	DecodeEvent(storable eventstore.StorableEvent) (aggregate.Event, error)
}

// FlushResult reports the outcome of committing one aggregate's pending events.
type FlushResult struct {
	StreamID   eventstore.StreamIDString
	NewVersion eventstore.VersionUint
	Err        error
}

// IsConcurrencyConflict tells whether this aggregate failed to commit because
// another writer appended to its stream first.
func (r FlushResult) IsConcurrencyConflict() bool {
	return errors.Is(r.Err, eventstore.ErrConcurrencyConflict)
}

// Repository loads aggregates from an event store and commits their pending
// events. It tracks every aggregate passed to Get or GetExisting and flushes
// them all in one call; create one Repository per unit of work.
type Repository struct {
	store   eventstore.EventStore
	tracked []Aggregate
	logger  eventstore.Logger
	metrics eventstore.MetricsCollector
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger supplies a structured logger; slog.Logger satisfies the interface.
func WithLogger(logger eventstore.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithMetrics supplies a metrics collector.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(r *Repository) {
		r.metrics = collector
	}
}

// New creates a Repository bound to the given event store.
func New(store eventstore.EventStore, opts ...Option) *Repository {
	repo := &Repository{store: store}

	for _, opt := range opts {
		opt(repo)
	}

	return repo
}

// Get reads the aggregate's stream, replays it onto the aggregate, and starts
// tracking the aggregate for Flush. An empty stream is not an error: the
// aggregate simply stays at version zero, which is how new aggregates begin.
func (r *Repository) Get(ctx context.Context, agg Aggregate) error {
	storables, err := r.store.ReadStream(ctx, agg.ID())
	if err != nil {
		return err
	}

	history := make(aggregate.RecordedEvents, 0, len(storables))

	for _, storable := range storables {
		event, decodeErr := agg.DecodeEvent(storable)
		if decodeErr != nil {
			return errors.Join(ErrDecodingEventFailed, decodeErr)
		}

		history = append(history, aggregate.RecordedEvent{
			SequenceNumber: storable.SequenceNumber,
			Event:          event,
		})
	}

	if err := agg.Replay(history); err != nil {
		return err
	}

	r.track(agg)

	r.logDebug(logMsgAggregateLoaded,
		logAttrStreamID, agg.ID(),
		logAttrVersion, agg.Version(),
		logAttrEventCount, len(history))

	return nil
}

// GetExisting behaves like Get but fails with ErrNotFound when the stream
// holds no events, for commands that must target an existing aggregate.
func (r *Repository) GetExisting(ctx context.Context, agg Aggregate) error {
	if err := r.Get(ctx, agg); err != nil {
		return err
	}

	if agg.Version() == 0 {
		return fmt.Errorf("%w: stream %s", ErrNotFound, agg.ID())
	}

	return nil
}

// Flush appends the pending events of every tracked aggregate with optimistic
// concurrency and returns one FlushResult per aggregate that had pending
// events. Aggregates are committed independently; when any fails the returned
// error wraps ErrFlushFailed, and successfully committed aggregates keep their
// cleared state so a retry only re-attempts the failed ones.
func (r *Repository) Flush(ctx context.Context) ([]FlushResult, error) {
	var results []FlushResult
	var failed bool

	for _, agg := range r.tracked {
		pending := agg.PendingEvents()
		if len(pending) == 0 {
			continue
		}

		result := r.flushOne(ctx, agg, pending)
		if result.Err != nil {
			failed = true
		}

		results = append(results, result)
	}

	if failed {
		return results, ErrFlushFailed
	}

	return results, nil
}

func (r *Repository) flushOne(ctx context.Context, agg Aggregate, pending aggregate.PendingEvents) FlushResult {
	start := time.Now()

	storables, err := r.toStorableEvents(agg.ID(), pending)
	if err != nil {
		return FlushResult{StreamID: agg.ID(), Err: err}
	}

	expectedVersion := agg.Version() - eventstore.VersionUint(len(pending))

	newVersion, err := r.store.Append(ctx, agg.ID(), expectedVersion, storables[0], storables[1:]...)
	if err != nil {
		status := metricStatusError
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			status = metricStatusConflict
			r.incrementCounter(metricFlushConflicts, nil)
		}

		r.recordDuration(metricFlushDuration, time.Since(start), map[string]string{metricLabelStatus: status})
		r.logError(logMsgFlushFailed,
			logAttrStreamID, agg.ID(),
			logAttrError, err.Error())

		return FlushResult{StreamID: agg.ID(), Err: err}
	}

	agg.ClearPending()

	r.recordDuration(metricFlushDuration, time.Since(start), map[string]string{metricLabelStatus: metricStatusOK})
	r.incrementCounter(metricEventsCommitted, nil)
	r.logDebug(logMsgAggregateFlushed,
		logAttrStreamID, agg.ID(),
		logAttrNewVersion, newVersion,
		logAttrEventCount, len(storables))

	return FlushResult{StreamID: agg.ID(), NewVersion: newVersion}
}

func (r *Repository) toStorableEvents(
	streamID eventstore.StreamIDString,
	pending aggregate.PendingEvents,
) (eventstore.StorableEvents, error) {

	storables := make(eventstore.StorableEvents, 0, len(pending))

	for _, p := range pending {
		payloadJSON, err := json.Marshal(p.Event)
		if err != nil {
			return nil, errors.Join(ErrEncodingEventFailed, err)
		}

		metadataJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, errors.Join(ErrEncodingEventFailed, err)
		}

		storable, err := eventstore.BuildStorableEvent(
			streamID,
			p.SequenceNumber,
			p.Event.EventType(),
			p.Event.HasOccurredAt(),
			payloadJSON,
			metadataJSON,
		)
		if err != nil {
			return nil, err
		}

		storables = append(storables, storable)
	}

	return storables, nil
}

// track registers the aggregate once; reloading the same instance is a no-op.
func (r *Repository) track(agg Aggregate) {
	for _, tracked := range r.tracked {
		if tracked == agg {
			return
		}
	}

	r.tracked = append(r.tracked, agg)
}

func (r *Repository) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Repository) logError(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}

func (r *Repository) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if r.metrics != nil {
		r.metrics.RecordDuration(metric, duration, labels)
	}
}

func (r *Repository) incrementCounter(metric string, labels map[string]string) {
	if r.metrics != nil {
		r.metrics.IncrementCounter(metric, labels)
	}
}
