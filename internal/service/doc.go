// Package service contains the application use cases. It orchestrates the
// task store and the event publisher to fulfil the task operations exposed by
// the API.
//
// Every mutation follows the same two steps:
//
//  1. Run the store operation. If it fails, return its error and publish nothing.
//  2. On success, build the matching TaskEvent and hand it to the Publisher.
//     Publish failures are logged and never returned, since the mutation has
//     already committed.
//
// Reads never publish.
//
// The service depends on the store.TaskStore and events.Publisher interfaces,
// never on a concrete backend, so the same code runs against PostgreSQL,
// SQLite, the in-process registry or the Redis relay.
package service
