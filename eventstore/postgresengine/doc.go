// Package postgresengine provides the PostgreSQL implementation of the event
// store boundary, plus durable dispatch cursor storage for the outbox pump.
//
// The engine supports multiple database libraries through internal adapters:
//   - pgx.Pool (recommended for production)
//   - database/sql
//   - sqlx
//
// Optimistic concurrency is enforced inside the append statement itself:
// the insert is conditioned on MAX(sequence_number) of the target stream
// matching the expected version, so a lost race simply affects zero rows
// and surfaces as eventstore.ErrConcurrencyConflict. No locks are taken.
//
// Expected schema:
//
//	CREATE TABLE events (
//	    position        BIGSERIAL PRIMARY KEY,
//	    stream_id       TEXT NOT NULL,
//	    sequence_number BIGINT NOT NULL CHECK (sequence_number > 0),
//	    event_type      TEXT NOT NULL,
//	    occurred_at     TIMESTAMP WITH TIME ZONE NOT NULL,
//	    payload         JSONB NOT NULL,
//	    metadata        JSONB NOT NULL,
//	    UNIQUE (stream_id, sequence_number)
//	);
//
//	CREATE TABLE outbox_cursors (
//	    consumer_group TEXT PRIMARY KEY,
//	    position       BIGINT NOT NULL,
//	    updated_at     TIMESTAMP WITH TIME ZONE NOT NULL
//	);
package postgresengine
