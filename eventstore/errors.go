package eventstore

import (
	"errors"
)

var (
	// ErrEmptyStreamID is returned when an empty stream id is supplied.
	ErrEmptyStreamID = errors.New("stream id must not be empty")

	// ErrZeroSequenceNumber is returned when a sequence number of zero is supplied; streams start at 1.
	ErrZeroSequenceNumber = errors.New("sequence number must be greater than zero")

	// ErrInvalidPayloadJSON is returned when the payload is not valid JSON.
	ErrInvalidPayloadJSON = errors.New("payload json is not valid")

	// ErrInvalidMetadataJSON is returned when the metadata is not valid JSON.
	ErrInvalidMetadataJSON = errors.New("metadata json is not valid")

	// ErrConcurrencyConflict is returned when an append is conditioned on an
	// expected version that no longer matches the stream, i.e. another writer
	// appended concurrently. Recoverable by reload-decide-retry at the caller.
	ErrConcurrencyConflict = errors.New("concurrency conflict, expected version does not match stream version")

	// ErrStreamIDMismatch is returned when an event supplied for append belongs to a different stream.
	ErrStreamIDMismatch = errors.New("event stream id does not match the stream being appended to")

	// ErrNonContiguousAppend is returned when the events supplied for append do not
	// form a contiguous sequence starting directly after the expected version.
	ErrNonContiguousAppend = errors.New("events to append must be contiguous starting at expected version + 1")

	// ErrEmptyEventsTableName is returned when an empty events table name is supplied.
	ErrEmptyEventsTableName = errors.New("empty events table name supplied")

	// ErrEmptyCursorsTableName is returned when an empty cursors table name is supplied.
	ErrEmptyCursorsTableName = errors.New("empty cursors table name supplied")

	// ErrNilDatabaseConnection is returned when a nil database connection is supplied.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrBuildingQueryFailed is returned when building a SQL query fails.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingEventsFailed is returned when reading events from the store fails.
	// Reads are safe to retry.
	ErrQueryingEventsFailed = errors.New("querying events failed")

	// ErrAppendingEventsFailed is returned when the append execution fails for a
	// reason other than a concurrency conflict. Appends are not idempotent and
	// must not be blindly retried.
	ErrAppendingEventsFailed = errors.New("appending events failed")

	// ErrScanningDBRowFailed is returned when scanning a database row fails.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")

	// ErrGettingRowsAffectedFailed is returned when the rows affected count is unavailable.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

	// ErrBuildingStorableEventFailed is returned when a database row does not yield a valid StorableEvent.
	ErrBuildingStorableEventFailed = errors.New("building storable event failed")
)
