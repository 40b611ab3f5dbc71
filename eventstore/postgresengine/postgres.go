package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName        = "events"
	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgBuildStorableFailed    = "failed to build storable event from database row"
	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgDBExecFailed           = "database execution failed during event append"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgStreamRead             = "stream read"
	logMsgGlobalRead             = "global read"
	logMsgEventsAppended         = "events appended"
	logMsgConcurrencyConflict    = "concurrency conflict detected"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "eventstore operation: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrStreamID              = "stream_id"
	logAttrEventCount            = "event_count"
	logAttrDurationMS            = "duration_ms"
	logAttrExpectedEvents        = "expected_events"
	logAttrRowsAffected          = "rows_affected"
	logAttrExpectedVersion       = "expected_version"
	logActionReadStream          = "read stream"
	logActionReadAll             = "read all"
	logActionAppend              = "append"
	metricAppendsTotal           = "eventstore_appends_total"
	metricConflictsTotal         = "eventstore_concurrency_conflicts_total"
	metricAppendDuration         = "eventstore_append_duration"
	metricReadDuration           = "eventstore_read_duration"
	colPosition                  = "position"
	colStreamID                  = "stream_id"
	colSequenceNumber            = "sequence_number"
	colEventType                 = "event_type"
	colOccurredAt                = "occurred_at"
	colPayload                   = "payload"
	colMetadata                  = "metadata"
	cteContext                   = "context"
	cteVals                      = "vals"
	dialectPostgres              = "postgres"
	aliasMaxSeq                  = "max_seq"
	castText                     = "?::text"
	castBigint                   = "?::bigint"
	castTimestamp                = "?::timestamp with time zone"
	castJsonb                    = "?::jsonb"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// EventStore is a PostgreSQL implementation of the event store boundary:
// per-stream reads, conditional appends with optimistic concurrency, and
// global tailing in append order for the outbox pump.
// It leverages a database adapter and supports customizable logging, metrics,
// and event table configuration.
type EventStore struct {
	db               adapters.DBAdapter
	eventTableName   string
	logger           eventstore.Logger
	metricsCollector eventstore.MetricsCollector
}

type streamRow struct {
	streamID       string
	sequenceNumber int64
	eventType      string
	occurredAt     time.Time
	payload        []byte
	metadata       []byte
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	es := EventStore{
		db:             adapters.NewPGXAdapter(db),
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return EventStore{}, err
		}
	}

	return es, nil
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	es := EventStore{
		db:             adapters.NewSQLAdapter(db),
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return EventStore{}, err
		}
	}

	return es, nil
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	es := EventStore{
		db:             adapters.NewSQLXAdapter(db),
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return EventStore{}, err
		}
	}

	return es, nil
}

// ReadStream retrieves all events of the given stream from the Postgres event store
// in ascending sequence number order. A stream without events yields an empty slice.
func (es EventStore) ReadStream(ctx context.Context, streamID eventstore.StreamIDString) (
	eventstore.StorableEvents,
	error,
) {

	var empty eventstore.StorableEvents

	if streamID == "" {
		return empty, eventstore.ErrEmptyStreamID
	}

	sqlQuery, buildQueryErr := es.buildReadStreamQuery(streamID)
	if buildQueryErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildSelectQueryFailed, logAttrError, buildQueryErr.Error())
		}
		return empty, buildQueryErr
	}

	rows, duration, queryErr := es.executeQuery(ctx, sqlQuery, logActionReadStream)
	if queryErr != nil {
		return empty, queryErr
	}
	defer es.closeRows(rows)

	eventStream, scanErr := es.scanStreamRows(rows)
	if scanErr != nil {
		return empty, scanErr
	}

	es.recordDuration(metricReadDuration, duration, map[string]string{logAttrStreamID: streamID})
	es.logOperation(
		logMsgStreamRead,
		logAttrStreamID, streamID,
		logAttrEventCount, len(eventStream),
		logAttrDurationMS, es.durationToMilliseconds(duration))

	return eventStream, nil
}

// ReadAllAfter retrieves up to limit events with a global position greater than
// afterPosition, across all streams, in ascending position order.
// This is the polling read used by the outbox pump.
func (es EventStore) ReadAllAfter(ctx context.Context, afterPosition eventstore.PositionUint, limit int) (
	eventstore.SequencedEvents,
	error,
) {

	var empty eventstore.SequencedEvents

	sqlQuery, buildQueryErr := es.buildReadAllAfterQuery(afterPosition, limit)
	if buildQueryErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildSelectQueryFailed, logAttrError, buildQueryErr.Error())
		}
		return empty, buildQueryErr
	}

	rows, duration, queryErr := es.executeQuery(ctx, sqlQuery, logActionReadAll)
	if queryErr != nil {
		return empty, queryErr
	}
	defer es.closeRows(rows)

	sequencedEvents, scanErr := es.scanSequencedRows(rows)
	if scanErr != nil {
		return empty, scanErr
	}

	es.logOperation(
		logMsgGlobalRead,
		logAttrEventCount, len(sequencedEvents),
		logAttrDurationMS, es.durationToMilliseconds(duration))

	return sequencedEvents, nil
}

// Append attempts to append one or multiple eventstore.StorableEvent(s) onto the stream,
// conditioned on the stream's current version being equal to expectedVersion.
//
// The condition is evaluated inside the insert statement itself (a conditional
// write against MAX(sequence_number) of the stream), so no explicit lock is taken.
// Either all events are appended contiguously or none are.
//
// Returns the new stream version on success, or eventstore.ErrConcurrencyConflict
// when another writer appended to the stream concurrently.
func (es EventStore) Append(
	ctx context.Context,
	streamID eventstore.StreamIDString,
	expectedVersion eventstore.VersionUint,
	event eventstore.StorableEvent,
	additionalEvents ...eventstore.StorableEvent,
) (eventstore.VersionUint, error) {

	allEvents := eventstore.StorableEvents{event}
	allEvents = append(allEvents, additionalEvents...)

	if validateErr := validateAppendInput(streamID, expectedVersion, allEvents); validateErr != nil {
		return 0, validateErr
	}

	sqlQuery, buildQueryErr := es.buildAppendQuery(streamID, allEvents, expectedVersion)
	if buildQueryErr != nil {
		return 0, buildQueryErr
	}

	rowsAffected, duration, execErr := es.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		return 0, execErr
	}

	if err := es.validateAppendResult(streamID, rowsAffected, len(allEvents), expectedVersion); err != nil {
		return 0, err
	}

	newVersion := expectedVersion + eventstore.VersionUint(len(allEvents))

	es.incrementCounter(metricAppendsTotal, map[string]string{logAttrStreamID: streamID})
	es.recordDuration(metricAppendDuration, duration, map[string]string{logAttrStreamID: streamID})
	es.logOperation(
		logMsgEventsAppended,
		logAttrStreamID, streamID,
		logAttrEventCount, len(allEvents),
		logAttrDurationMS, es.durationToMilliseconds(duration),
	)

	return newVersion, nil
}

// validateAppendInput ensures the events to append form a contiguous sequence
// starting directly after the expected version.
func validateAppendInput(
	streamID eventstore.StreamIDString,
	expectedVersion eventstore.VersionUint,
	allEvents eventstore.StorableEvents,
) error {

	if streamID == "" {
		return eventstore.ErrEmptyStreamID
	}

	for i, e := range allEvents {
		if e.StreamID != streamID {
			return eventstore.ErrStreamIDMismatch
		}

		if e.SequenceNumber != expectedVersion+eventstore.SequenceNumberUint(i)+1 {
			return eventstore.ErrNonContiguousAppend
		}
	}

	return nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (es EventStore) executeQuery(ctx context.Context, sqlQuery string, action string) (
	adapters.DBRows,
	time.Duration,
	error,
) {

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, action, duration)

	if queryErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		}

		return nil, duration, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	return rows, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (es EventStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// scanStreamRows converts database rows into storable events.
func (es EventStore) scanStreamRows(rows adapters.DBRows) (eventstore.StorableEvents, error) {
	var empty eventstore.StorableEvents
	result := streamRow{}
	eventStream := make(eventstore.StorableEvents, 0)

	for rows.Next() {
		rowScanErr := rows.Scan(
			&result.streamID, &result.sequenceNumber, &result.eventType,
			&result.occurredAt, &result.payload, &result.metadata)
		if rowScanErr != nil {
			if es.logger != nil {
				es.logger.Error(logMsgScanRowFailed, logAttrError, rowScanErr.Error())
			}

			return empty, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		storableEvent, buildErr := es.storableEventFromRow(result)
		if buildErr != nil {
			return empty, buildErr
		}

		eventStream = append(eventStream, storableEvent)
	}

	return eventStream, nil
}

// scanSequencedRows converts database rows into sequenced events with their global position.
func (es EventStore) scanSequencedRows(rows adapters.DBRows) (eventstore.SequencedEvents, error) {
	var empty eventstore.SequencedEvents
	var position int64
	result := streamRow{}
	sequencedEvents := make(eventstore.SequencedEvents, 0)

	for rows.Next() {
		rowScanErr := rows.Scan(
			&position, &result.streamID, &result.sequenceNumber, &result.eventType,
			&result.occurredAt, &result.payload, &result.metadata)
		if rowScanErr != nil {
			if es.logger != nil {
				es.logger.Error(logMsgScanRowFailed, logAttrError, rowScanErr.Error())
			}

			return empty, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		storableEvent, buildErr := es.storableEventFromRow(result)
		if buildErr != nil {
			return empty, buildErr
		}

		sequencedEvents = append(sequencedEvents, eventstore.SequencedEvent{
			Position: eventstore.PositionUint(position), //nolint:gosec // position is a bigserial, never negative
			Event:    storableEvent,
		})
	}

	return sequencedEvents, nil
}

func (es EventStore) storableEventFromRow(result streamRow) (eventstore.StorableEvent, error) {
	storableEvent, buildStorableErr := eventstore.BuildStorableEvent(
		result.streamID,
		eventstore.SequenceNumberUint(result.sequenceNumber), //nolint:gosec // sequence numbers are positive by schema
		result.eventType,
		result.occurredAt,
		result.payload,
		result.metadata,
	)
	if buildStorableErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildStorableFailed, logAttrError, buildStorableErr.Error(), logAttrStreamID, result.streamID)
		}

		return eventstore.StorableEvent{}, errors.Join(eventstore.ErrBuildingStorableEventFailed, buildStorableErr)
	}

	return storableEvent, nil
}

// buildAppendQuery builds the appropriate SQL query for single or multiple events.
func (es EventStore) buildAppendQuery(
	streamID eventstore.StreamIDString,
	allEvents eventstore.StorableEvents,
	expectedVersion eventstore.VersionUint,
) (sqlQueryString, error) {

	var sqlQuery sqlQueryString
	var buildQueryErr error

	switch len(allEvents) {
	case 1:
		sqlQuery, buildQueryErr = es.buildInsertQueryForSingleEvent(streamID, allEvents[0], expectedVersion)

	default:
		sqlQuery, buildQueryErr = es.buildInsertQueryForMultipleEvents(streamID, allEvents, expectedVersion)
	}

	if buildQueryErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildInsertQueryFailed, logAttrError, buildQueryErr.Error(), logAttrEventCount, len(allEvents))
		}

		return "", buildQueryErr
	}

	return sqlQuery, nil
}

// executeAppendQuery executes the SQL append query and returns rows affected and duration.
func (es EventStore) executeAppendQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	tag, execErr := es.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, logActionAppend, duration)

	if execErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		}

		return 0, duration, errors.Join(eventstore.ErrAppendingEventsFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := tag.RowsAffected()
	if rowsAffectedErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		}

		return 0, duration, errors.Join(eventstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// validateAppendResult checks if the append operation was successful and detects concurrency conflicts.
func (es EventStore) validateAppendResult(
	streamID eventstore.StreamIDString,
	rowsAffected int64,
	expectedEventCount int,
	expectedVersion eventstore.VersionUint,
) error {

	if rowsAffected < int64(expectedEventCount) {
		es.incrementCounter(metricConflictsTotal, map[string]string{logAttrStreamID: streamID})
		es.logOperation(
			logMsgConcurrencyConflict,
			logAttrStreamID, streamID,
			logAttrExpectedEvents, expectedEventCount,
			logAttrRowsAffected, rowsAffected,
			logAttrExpectedVersion, expectedVersion,
		)

		return eventstore.ErrConcurrencyConflict
	}

	return nil
}

func (es EventStore) buildReadStreamQuery(streamID eventstore.StreamIDString) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colStreamID, colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		Where(goqu.Ex{colStreamID: streamID}).
		Order(goqu.I(colSequenceNumber).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildReadAllAfterQuery(afterPosition eventstore.PositionUint, limit int) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colPosition, colStreamID, colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		Where(goqu.C(colPosition).Gt(afterPosition)).
		Order(goqu.I(colPosition).Asc())

	if limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildInsertQueryForSingleEvent(
	streamID eventstore.StreamIDString,
	event eventstore.StorableEvent,
	expectedVersion eventstore.VersionUint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// Define the subquery for the CTE: the stream's current version
	cteStmt := builder.
		From(es.eventTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq)).
		Where(goqu.Ex{colStreamID: streamID})

	// Define the SELECT for the INSERT, guarded by the expected version
	selectStmt := builder.
		From(cteContext).
		Select(
			goqu.V(event.StreamID),
			goqu.V(int64(event.SequenceNumber)),
			goqu.V(event.EventType),
			goqu.V(event.OccurredAt),
			goqu.V(event.PayloadJSON),
			goqu.V(event.MetadataJSON),
		).
		Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedVersion)))

	// Finalize the full INSERT query
	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colStreamID, colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		FromQuery(selectStmt).
		With(cteContext, cteStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildInsertQueryFailed, logAttrError, toSQLErr.Error(), logAttrStreamID, streamID)
		}
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildInsertQueryForMultipleEvents(
	streamID eventstore.StreamIDString,
	events eventstore.StorableEvents,
	expectedVersion eventstore.VersionUint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// Define the subquery for the CTE: the stream's current version
	cteStmt := builder.
		From(es.eventTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq)).
		Where(goqu.Ex{colStreamID: streamID})

	// Create individual SELECT statements for each event
	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.L(castText, event.StreamID).As(colStreamID),
				goqu.L(castBigint, int64(event.SequenceNumber)).As(colSequenceNumber),
				goqu.L(castText, event.EventType).As(colEventType),
				goqu.L(castTimestamp, event.OccurredAt).As(colOccurredAt),
				goqu.L(castJsonb, event.PayloadJSON).As(colPayload),
				goqu.L(castJsonb, event.MetadataJSON).As(colMetadata),
			)
	}

	// Combine all SELECT statements with UNION ALL
	valuesStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valuesStmt = valuesStmt.UnionAll(unionStatements[i])
	}

	// Finalize the full INSERT query
	valsStreamID := fmt.Sprintf("%s.%s", cteVals, colStreamID)
	valsSequenceNumber := fmt.Sprintf("%s.%s", cteVals, colSequenceNumber)
	valsEventType := fmt.Sprintf("%s.%s", cteVals, colEventType)
	valsOccurredAt := fmt.Sprintf("%s.%s", cteVals, colOccurredAt)
	valsPayload := fmt.Sprintf("%s.%s", cteVals, colPayload)
	valsMetadata := fmt.Sprintf("%s.%s", cteVals, colMetadata)

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colStreamID, colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteContext, cteVals).
				Select(valsStreamID, valsSequenceNumber, valsEventType, valsOccurredAt, valsPayload, valsMetadata).
				Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedVersion))),
		)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildInsertQueryFailed, logAttrError, toSQLErr.Error(), logAttrEventCount, len(events))
		}
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (es EventStore) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {

	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, es.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (es EventStore) logOperation(action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}
}

func (es EventStore) incrementCounter(metric string, labels map[string]string) {
	if es.metricsCollector != nil {
		es.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (es EventStore) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if es.metricsCollector != nil {
		es.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es EventStore) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
