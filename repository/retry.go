package repository

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

const (
	metricRetryDelay       = "repository_retry_delay_seconds"
	metricRetriesTotal     = "repository_retries_total"
	metricRetriesExhausted = "repository_retries_exhausted_total"
	metricLabelAttempt     = "attempt_number"
	metricLabelErrorType   = "error_type"
	errorTypeConflict      = "concurrency_conflict"
	errorTypeCanceled      = "context_canceled"
	errorTypeDeadline      = "context_deadline_exceeded"
	errorTypeOther         = "other"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents one attempt of a decide-and-flush cycle. Each
// invocation must reload the aggregate from the store so that the retry sees
// the events of the writer it lost the race against.
type RetryableFunc func(ctx context.Context) error

// retryConfig holds configuration for exponential backoff retry logic.
type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector eventstore.MetricsCollector
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts (the first try included).
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor applied to each backoff delay.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics supplies a metrics collector for retry instrumentation.
func WithRetryMetrics(collector eventstore.MetricsCollector) RetryOption {
	return func(config *retryConfig) error {
		config.metricsCollector = collector

		return nil
	}
}

// RetryOnConflict executes fn with exponential backoff, retrying only on
// eventstore.ErrConcurrencyConflict up to maxAttempts times.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms (with 30% jitter).
//
// All other errors fail fast. A context.DeadlineExceeded is deliberately not
// retried: retrying timeouts during overload creates cascade failures, so
// capacity problems should surface immediately.
func RetryOnConflict(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^(attempt-1)
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			// Add jitter to prevent thundering herd
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				// Continue with retry
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr // Permanent failure
		}

		recordRetryAttemptMetric(config, attempt, lastErr)
	}

	recordRetriesExhaustedMetric(config, lastErr)

	return lastErr // Max attempts reached
}

func recordRetryDelayMetric(config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector != nil {
		config.metricsCollector.RecordDuration(metricRetryDelay, backoffDelay, map[string]string{
			metricLabelAttempt: strconv.Itoa(attempt),
		})
	}
}

func recordRetryAttemptMetric(config *retryConfig, attempt int, lastErr error) {
	if attempt < config.maxAttempts-1 && config.metricsCollector != nil {
		config.metricsCollector.IncrementCounter(metricRetriesTotal, map[string]string{
			metricLabelAttempt:   strconv.Itoa(attempt + 1),
			metricLabelErrorType: getErrorType(lastErr),
		})
	}
}

func recordRetriesExhaustedMetric(config *retryConfig, lastErr error) {
	if config.metricsCollector != nil {
		config.metricsCollector.IncrementCounter(metricRetriesExhausted, map[string]string{
			metricLabelErrorType: getErrorType(lastErr),
		})
	}
}

// isRetryableError determines if an error should be retried.
// Only concurrency conflicts are considered retryable; they are transient by
// nature since the losing writer can reload and decide again.
func isRetryableError(err error) bool {
	return errors.Is(err, eventstore.ErrConcurrencyConflict)
}

// getErrorType extracts a string representation of the error type for metrics labeling.
func getErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return errorTypeConflict
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadline
	default:
		return errorTypeOther
	}
}
