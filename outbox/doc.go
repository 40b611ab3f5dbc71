// Package outbox forwards committed events from the event store to an
// external destination with at-least-once delivery.
//
// The Pump tails the store's global event order from a durable cursor,
// publishes each event through the Publisher boundary, and advances the cursor
// only after the publish is confirmed. A publish failure is retried with
// capped exponential backoff for as long as the pump runs, so events are never
// skipped. A cursor save that fails after a confirmed publish is logged and
// tolerated; the event may be delivered again after a restart, which is the
// at-least-once contract consumers must handle anyway.
package outbox
