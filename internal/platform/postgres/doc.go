// Package postgres provides the PostgreSQL backend: connection setup through
// the pgx database/sql driver, the embedded schema migrations and the mapping
// of PostgreSQL error codes onto store errors. The task queries themselves
// are shared with the SQLite backend in package sqlstore.
package postgres
