// Package storage opens and bootstraps the relational database behind the
// analytics pipeline, plus the shared Redis client.
//
// Two drivers are supported: postgres (lib/pq) for deployments and
// sqlite3 for local development and integration tests. Queries elsewhere
// in the codebase stick to the SQL subset both drivers accept, with
// positional $n placeholders.
//
// Bootstrap applies the schema idempotently; it is meant for dev and test
// environments, production deployments migrate out of band.
package storage
