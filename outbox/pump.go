package outbox

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

const (
	publishRetryBaseDelay    = 10 * time.Millisecond
	publishRetryMaxDelay     = 5 * time.Second
	publishRetryJitterFactor = 0.3
)

const (
	logMsgPumpStarted        = "outbox pump started"
	logMsgPumpStopped        = "outbox pump stopped"
	logMsgEventPublished     = "outbox event published"
	logMsgPublishFailed      = "publishing outbox event failed, backing off"
	logMsgCursorSaveFailed   = "saving outbox cursor failed, event may be republished after restart"
	logMsgReadingBatchFailed = "reading outbox batch failed"
)

const (
	logAttrConsumerGroup = "consumer_group"
	logAttrDestination   = "destination"
	logAttrPosition      = "position"
	logAttrEventType     = "event_type"
	logAttrAttempt       = "attempt"
	logAttrDelay         = "delay"
	logAttrError         = "error"
)

const (
	metricPublishedTotal      = "outbox_published_total"
	metricPublishRetriesTotal = "outbox_publish_retries_total"
	metricPublishDuration     = "outbox_publish_duration_seconds"
	metricCursorSaveFailures  = "outbox_cursor_save_failures_total"
	metricBatchSize           = "outbox_batch_size"
	metricLabelEventType      = "event_type"
)

var (
	// ErrNilStore is returned when the pump is created without an event store.
	ErrNilStore = errors.New("event store must not be nil")

	// ErrNilPublisher is returned when the pump is created without a publisher.
	ErrNilPublisher = errors.New("publisher must not be nil")

	// ErrNilCursorStore is returned when the pump is created without a cursor store.
	ErrNilCursorStore = errors.New("cursor store must not be nil")

	// ErrAlreadyStarted is returned when Start is called on a running pump.
	ErrAlreadyStarted = errors.New("outbox pump already started")

	// errShuttingDown aborts the publish retry loop during shutdown.
	errShuttingDown = errors.New("outbox pump shutting down")
)

// Pump tails the event store's global order and publishes every event,
// in order, to one destination for one consumer group.
// Run exactly one Pump per consumer group; two pumps on the same group would
// race on the cursor and duplicate deliveries.
type Pump struct {
	store     eventstore.GlobalReader
	publisher Publisher
	cursors   CursorStore
	config    Config
	logger    eventstore.Logger
	metrics   eventstore.MetricsCollector

	// mu guards the lifecycle state; closeChan and done belong to one run of
	// the pump goroutine and are replaced on every Start.
	mu        sync.Mutex
	running   bool
	closeChan chan struct{}
	done      chan struct{}
}

// Option configures a Pump.
type Option func(*Pump)

// WithLogger supplies a structured logger; slog.Logger satisfies the interface.
func WithLogger(logger eventstore.Logger) Option {
	return func(p *Pump) {
		p.logger = logger
	}
}

// WithMetrics supplies a metrics collector.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(p *Pump) {
		p.metrics = collector
	}
}

// NewPump creates a pump reading from store and publishing through publisher,
// resuming from the cursor store's position for the configured consumer group.
func NewPump(
	store eventstore.GlobalReader,
	publisher Publisher,
	cursors CursorStore,
	config Config,
	opts ...Option,
) (*Pump, error) {

	switch {
	case store == nil:
		return nil, ErrNilStore
	case publisher == nil:
		return nil, ErrNilPublisher
	case cursors == nil:
		return nil, ErrNilCursorStore
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	pump := &Pump{
		store:     store,
		publisher: publisher,
		cursors:   cursors,
		config:    config,
	}

	for _, opt := range opts {
		opt(pump)
	}

	return pump, nil
}

// Start loads the consumer group's cursor and launches the pump goroutine.
// It returns immediately; publishing runs in the background until Stop is
// called or ctx is canceled. A stopped pump can be started again.
func (p *Pump) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyStarted
	}

	cursor, err := p.cursors.Load(ctx, p.config.ConsumerGroup)
	if err != nil {
		return err
	}

	p.running = true
	p.closeChan = make(chan struct{})
	p.done = make(chan struct{})

	p.logInfo(logMsgPumpStarted,
		logAttrConsumerGroup, p.config.ConsumerGroup,
		logAttrDestination, p.config.Destination,
		logAttrPosition, cursor)

	go p.run(ctx, cursor, p.closeChan, p.done)

	return nil
}

// Stop shuts the pump down gracefully: the in-flight publish and cursor save
// finish, then the goroutine exits. Safe to call more than once; a Stop that
// overlaps a failing Start returns once that Start has given up.
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	closeChan, done := p.closeChan, p.done
	p.running = false
	p.mu.Unlock()

	close(closeChan)
	<-done
}

func (p *Pump) run(ctx context.Context, cursor eventstore.PositionUint, closeChan, done chan struct{}) {
	defer close(done)
	defer func() {
		p.logInfo(logMsgPumpStopped,
			logAttrConsumerGroup, p.config.ConsumerGroup,
			logAttrPosition, cursor)
	}()

	for {
		batchWasFull := p.drainBatch(ctx, closeChan, &cursor)

		if shuttingDown(ctx, closeChan) {
			return
		}

		// A full batch means more events are likely waiting, poll again now.
		if batchWasFull {
			continue
		}

		select {
		case <-time.After(p.config.PollInterval):
		case <-ctx.Done():
			return
		case <-closeChan:
			return
		}
	}
}

// drainBatch reads and publishes one batch, advancing the cursor after each
// confirmed publish. It reports whether the batch was full.
func (p *Pump) drainBatch(ctx context.Context, closeChan chan struct{}, cursor *eventstore.PositionUint) bool {
	batch, err := p.store.ReadAllAfter(ctx, *cursor, p.config.BatchSize)
	if err != nil {
		if !shuttingDown(ctx, closeChan) {
			p.logError(logMsgReadingBatchFailed, logAttrError, err.Error())
		}

		return false
	}

	p.recordValue(metricBatchSize, float64(len(batch)), nil)

	for _, sequenced := range batch {
		if shuttingDown(ctx, closeChan) {
			return false
		}

		if err := p.publishWithRetry(ctx, closeChan, sequenced); err != nil {
			return false // only fails when shutting down
		}

		*cursor = sequenced.Position
		p.saveCursor(ctx, *cursor)
	}

	return len(batch) == p.config.BatchSize
}

// publishWithRetry publishes one event, retrying with capped exponential
// backoff and jitter until the publish is confirmed or the pump shuts down.
// The cursor is untouched until this returns nil, so a crashing pump
// republishes the event instead of losing it.
func (p *Pump) publishWithRetry(ctx context.Context, closeChan chan struct{}, sequenced eventstore.SequencedEvent) error {
	for attempt := 0; ; attempt++ {
		start := time.Now()

		err := p.publisher.Publish(ctx, p.config.Destination, sequenced)
		if err == nil {
			p.recordDuration(metricPublishDuration, time.Since(start),
				map[string]string{metricLabelEventType: sequenced.Event.EventType})
			p.incrementCounter(metricPublishedTotal,
				map[string]string{metricLabelEventType: sequenced.Event.EventType})
			p.logDebug(logMsgEventPublished,
				logAttrPosition, sequenced.Position,
				logAttrEventType, sequenced.Event.EventType)

			return nil
		}

		if shuttingDown(ctx, closeChan) {
			return errShuttingDown
		}

		delay := backoffDelay(attempt)

		p.incrementCounter(metricPublishRetriesTotal,
			map[string]string{metricLabelEventType: sequenced.Event.EventType})
		p.logWarn(logMsgPublishFailed,
			logAttrPosition, sequenced.Position,
			logAttrEventType, sequenced.Event.EventType,
			logAttrAttempt, attempt+1,
			logAttrDelay, delay.String(),
			logAttrError, err.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errShuttingDown
		case <-closeChan:
			return errShuttingDown
		}
	}
}

func (p *Pump) saveCursor(ctx context.Context, position eventstore.PositionUint) {
	if err := p.cursors.Save(ctx, p.config.ConsumerGroup, position); err != nil {
		p.incrementCounter(metricCursorSaveFailures, nil)
		p.logWarn(logMsgCursorSaveFailed,
			logAttrConsumerGroup, p.config.ConsumerGroup,
			logAttrPosition, position,
			logAttrError, err.Error())
	}
}

func shuttingDown(ctx context.Context, closeChan chan struct{}) bool {
	select {
	case <-closeChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// backoffDelay computes baseDelay * 2^attempt with jitter, capped at publishRetryMaxDelay.
func backoffDelay(attempt int) time.Duration {
	delay := publishRetryBaseDelay
	for i := 0; i < attempt && delay < publishRetryMaxDelay; i++ {
		delay *= 2
	}

	if delay > publishRetryMaxDelay {
		delay = publishRetryMaxDelay
	}

	jitter := rand.Float64() * float64(delay) * publishRetryJitterFactor //nolint:gosec // math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

func (p *Pump) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pump) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pump) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pump) logError(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}

func (p *Pump) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if p.metrics != nil {
		p.metrics.RecordDuration(metric, duration, labels)
	}
}

func (p *Pump) recordValue(metric string, value float64, labels map[string]string) {
	if p.metrics != nil {
		p.metrics.RecordValue(metric, value, labels)
	}
}

func (p *Pump) incrementCounter(metric string, labels map[string]string) {
	if p.metrics != nil {
		p.metrics.IncrementCounter(metric, labels)
	}
}
