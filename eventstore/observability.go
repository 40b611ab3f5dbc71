package eventstore

import (
	"time"
)

// Logger interface for SQL query logging, operational messages, warnings, and error reporting.
// The signature is log/slog compatible so an *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting performance and operational metrics
// from the event store, the repository, and the outbox pump.
// This dependency-free pattern lets users integrate any metrics backend
// (Prometheus, OpenTelemetry, statsd, ...) by implementing this interface.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}
