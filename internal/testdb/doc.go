// Package testdb provides database setup for tests.
//
// OpenSQLite returns a migrated private in-memory SQLite database and is what
// most package tests use. GetTestDBWithT connects to the PostgreSQL server named
// by DATABASE_URL (or TASKBOARD_TEST_DB_URL), applies the migrations and skips
// the calling test when neither variable is set, so the same store tests can
// run against both backends:
//
//	func TestTaskStore_Postgres(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.ResetTasks(t, db)
//	    s := postgres.NewTaskStore(db, nil)
//	    ...
//	}
package testdb
