// Package sqlite provides the embedded SQLite backend: connection setup for
// the pure-Go modernc.org/sqlite driver, its schema migrations and the
// mapping of SQLite constraint errors onto store errors.
package sqlite
