// Package observability provides test doubles for the Logger and
// MetricsCollector boundaries, capturing calls for inspection in tests.
package observability
