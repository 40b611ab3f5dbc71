// Package config reads connection settings from the environment and builds
// configured database handles for the Postgres event store engine.
//
// All settings come from POSTGRES_* environment variables with sensible
// defaults for local development. Each supported database access layer has a
// builder: pgxpool, database/sql, and sqlx all connect to the same store.
package config
