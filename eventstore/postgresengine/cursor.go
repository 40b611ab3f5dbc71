package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultCursorsTableName = "outbox_cursors"
	logMsgCursorLoaded      = "dispatch cursor loaded"
	logMsgCursorSaved       = "dispatch cursor saved"
	logMsgLoadCursorFailed  = "failed to load dispatch cursor"
	logMsgSaveCursorFailed  = "failed to save dispatch cursor"
	logAttrConsumerGroup    = "consumer_group"
	logAttrPosition         = "position"
	colConsumerGroup        = "consumer_group"
	colUpdatedAt            = "updated_at"
)

var (
	// ErrLoadingCursorFailed is returned when reading the dispatch cursor fails.
	ErrLoadingCursorFailed = errors.New("loading dispatch cursor failed")

	// ErrSavingCursorFailed is returned when persisting the dispatch cursor fails.
	ErrSavingCursorFailed = errors.New("saving dispatch cursor failed")
)

// CursorStore persists outbox dispatch cursors in PostgreSQL, one row per
// consumer group. It satisfies the outbox package's CursorStore boundary.
//
// The cursor marks the global position of the last successfully published
// event; it must only ever be advanced after the transport confirmed a publish.
type CursorStore struct {
	db               adapters.DBAdapter
	cursorsTableName string
	logger           eventstore.Logger
}

// CursorOption defines a functional option for configuring CursorStore.
type CursorOption func(*CursorStore) error

// WithCursorsTableName sets the cursors table name for the CursorStore.
func WithCursorsTableName(tableName string) CursorOption {
	return func(cs *CursorStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyCursorsTableName
		}

		cs.cursorsTableName = tableName

		return nil
	}
}

// WithCursorLogger sets the logger for the CursorStore.
func WithCursorLogger(logger eventstore.Logger) CursorOption {
	return func(cs *CursorStore) error {
		cs.logger = logger
		return nil
	}
}

// NewCursorStoreFromPGXPool creates a new CursorStore using a pgx Pool with optional configuration.
func NewCursorStoreFromPGXPool(db *pgxpool.Pool, options ...CursorOption) (CursorStore, error) {
	if db == nil {
		return CursorStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newCursorStore(adapters.NewPGXAdapter(db), options...)
}

// NewCursorStoreFromSQLDB creates a new CursorStore using a sql.DB with optional configuration.
func NewCursorStoreFromSQLDB(db *sql.DB, options ...CursorOption) (CursorStore, error) {
	if db == nil {
		return CursorStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newCursorStore(adapters.NewSQLAdapter(db), options...)
}

// NewCursorStoreFromSQLX creates a new CursorStore using a sqlx.DB with optional configuration.
func NewCursorStoreFromSQLX(db *sqlx.DB, options ...CursorOption) (CursorStore, error) {
	if db == nil {
		return CursorStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newCursorStore(adapters.NewSQLXAdapter(db), options...)
}

func newCursorStore(db adapters.DBAdapter, options ...CursorOption) (CursorStore, error) {
	cs := CursorStore{
		db:               db,
		cursorsTableName: defaultCursorsTableName,
	}

	for _, option := range options {
		if err := option(&cs); err != nil {
			return CursorStore{}, err
		}
	}

	return cs, nil
}

// Load returns the persisted position for the consumer group.
// A consumer group without a persisted cursor yields position 0, i.e.
// "before the first event", which is the correct starting point for a first run.
func (cs CursorStore) Load(ctx context.Context, consumerGroup string) (eventstore.PositionUint, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(cs.cursorsTableName).
		Select(colPosition).
		Where(goqu.Ex{colConsumerGroup: consumerGroup})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := cs.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		if cs.logger != nil {
			cs.logger.Error(logMsgLoadCursorFailed, logAttrError, queryErr.Error(), logAttrConsumerGroup, consumerGroup)
		}

		return 0, errors.Join(ErrLoadingCursorFailed, queryErr)
	}
	defer func() { _ = rows.Close() }()

	var position int64
	if !rows.Next() {
		return 0, nil
	}

	if scanErr := rows.Scan(&position); scanErr != nil {
		if cs.logger != nil {
			cs.logger.Error(logMsgScanRowFailed, logAttrError, scanErr.Error())
		}

		return 0, errors.Join(ErrLoadingCursorFailed, scanErr)
	}

	if cs.logger != nil {
		cs.logger.Debug(logMsgCursorLoaded, logAttrConsumerGroup, consumerGroup, logAttrPosition, position)
	}

	return eventstore.PositionUint(position), nil //nolint:gosec // positions are positive by schema
}

// Save persists the position for the consumer group, inserting the row on
// first use. A save below the persisted position leaves the row untouched,
// so a cursor can never move backwards.
func (cs CursorStore) Save(ctx context.Context, consumerGroup string, position eventstore.PositionUint) error {
	sqlQuery, toSQLErr := cs.buildSaveQuery(consumerGroup, position)
	if toSQLErr != nil {
		return errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := cs.db.Exec(ctx, sqlQuery); execErr != nil {
		if cs.logger != nil {
			cs.logger.Error(logMsgSaveCursorFailed, logAttrError, execErr.Error(), logAttrConsumerGroup, consumerGroup)
		}

		return errors.Join(ErrSavingCursorFailed, execErr)
	}

	if cs.logger != nil {
		cs.logger.Debug(logMsgCursorSaved, logAttrConsumerGroup, consumerGroup, logAttrPosition, position)
	}

	return nil
}

// buildSaveQuery builds the cursor upsert. The conflict update is guarded on
// the persisted position being lower, enforcing monotonic advancement even
// when a misconfigured second pump writes to the same consumer group.
func (cs CursorStore) buildSaveQuery(consumerGroup string, position eventstore.PositionUint) (string, error) {
	now := time.Now().UTC()

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(cs.cursorsTableName).
		Cols(colConsumerGroup, colPosition, colUpdatedAt).
		Vals(goqu.Vals{consumerGroup, int64(position), now}). //nolint:gosec // positions fit in int64
		OnConflict(goqu.DoUpdate(
			colConsumerGroup,
			goqu.Record{colPosition: int64(position), colUpdatedAt: now}, //nolint:gosec // positions fit in int64
		).Where(goqu.C(colPosition).Lt(int64(position)))) //nolint:gosec // positions fit in int64

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()

	return sqlQuery, toSQLErr
}
