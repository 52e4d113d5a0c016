package sqldb

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged so
// callers keep their own error kinds. Begin and commit failures are classified.
//
// fn must only use tx. Touching the pool while holding a transaction can
// deadlock a single-connection SQLite store.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if d.dialect == DialectPostgres && d.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return Classify("set lock timeout", err)
		}
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return Classify("commit transaction", err)
	}
	return nil
}

// LockProject takes a transaction-scoped lock on a project so that admin-count
// checks and the mutations that depend on them serialize per project.
func (d *DB) LockProject(ctx context.Context, q Querier, projectID string) error {
	if d.dialect != DialectPostgres {
		return nil
	}
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, projectID); err != nil {
		return Classify("lock project", err)
	}
	return nil
}
