// Package repository orchestrates loading and committing event-sourced
// aggregates within one unit of work.
//
// A Repository instance is owned by exactly one logical unit of work: it reads
// an aggregate's stream, replays it, tracks the instance, and on Flush appends
// all pending events with optimistic concurrency. A version conflict surfaces
// as eventstore.ErrConcurrencyConflict for that aggregate while its pending
// events stay intact, so the caller can reload, re-decide, and retry.
// RetryOnConflict implements that loop with exponential backoff.
//
// Aggregates flushed in one call are appended independently; the store gives
// no cross-stream atomicity, so partial failure is reported per aggregate.
package repository
