// Package sqldb is the shared relational store behind invitations, team
// membership and the audit trail.
//
// Two dialects are supported: PostgreSQL (lib/pq) for deployments and SQLite
// (mattn/go-sqlite3) for local mode and tests. Queries use $N placeholders,
// which both drivers accept, and must reference them in ascending order.
//
// # Transactions
//
// WithTx runs a function in one transaction. On Postgres every transaction sets
// a local lock_timeout, invitation reads lock the row with ForUpdate, and
// LockProject takes a transaction-scoped advisory lock so admin-count checks
// serialize per project. On SQLite open the database with _txlock=immediate so
// BEGIN takes the write lock; lock clauses then render empty.
//
// # Errors
//
// Classify converts driver errors into the access taxonomy: lock contention,
// deadlocks and deadlines become access.KindBusy, missing rows
// access.KindNotFound, and anything else access.KindUnavailable.
package sqldb
