// Package sqlstore implements store.TaskStore on top of database/sql.
//
// The queries use $N placeholders, RETURNING and COALESCE only, so the same
// statements run unchanged on PostgreSQL (pgx) and SQLite (modernc). Backend
// specific error codes are translated by the ErrorMapper the caller supplies.
package sqlstore
