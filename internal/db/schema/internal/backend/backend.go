// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

// Package backend owns the physical connection used to run migrations.  It
// emulates nested transactions with savepoints, probes whether DDL takes part
// in transactions and maintains the bookkeeping, lock and log tables.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/db/schema/internal/dialect"
	"github.com/hashicorp/strata/internal/errors"
)

// Backend is usable by a schema.Manager.  It holds a single connection and is
// not safe for concurrent use.
type Backend struct {
	// Locking, transactions and bookkeeping all need to use the same
	// connection.
	conn    *sql.Conn
	dialect dialect.Dialect

	tx         *sql.Tx
	savepoints int
	autocommit bool

	migrationTable string
	lockTable      string
	logTable       string

	pid              int
	lockPoll         time.Duration
	lockDepth        int
	transactionalDDL *bool
}

// New creates a Backend with the provided sql.DB verified as connectable.
// Supported options are WithMigrationTable, WithLockTable, WithLogTable,
// WithPid and WithLockPollInterval.
func New(ctx context.Context, d dialect.Dialect, db *sql.DB, opt ...Option) (*Backend, error) {
	const op = "backend.New"
	switch {
	case d == nil:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing dialect")
	case db == nil:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing database")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, dialect.Wrap(ctx, d, err, op)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, dialect.Wrap(ctx, d, err, op)
	}
	if err := d.Init(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(ctx, err, op)
	}
	opts := getOpts(opt...)
	return &Backend{
		conn:           conn,
		dialect:        d,
		migrationTable: opts.withMigrationTable,
		lockTable:      opts.withLockTable,
		logTable:       opts.withLogTable,
		pid:            opts.withPid,
		lockPoll:       opts.withLockPollInterval,
	}, nil
}

// Dialect returns the dialect the backend was created with.
func (b *Backend) Dialect() dialect.Dialect { return b.dialect }

// MigrationTable returns the bookkeeping table name.
func (b *Backend) MigrationTable() string { return b.migrationTable }

// Close closes the underlying connection.
func (b *Backend) Close() error {
	return b.conn.Close()
}

// InTransaction reports whether a transaction is open on the connection.
func (b *Backend) InTransaction() bool { return b.tx != nil }

// ExecContext executes query on the open transaction, or directly on the
// connection when there is none.  '?' placeholders are rewritten for the
// dialect when args are given.
func (b *Backend) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	const op = "backend.(Backend).ExecContext"
	if len(args) > 0 {
		query = b.dialect.Rebind(query)
	}
	var res sql.Result
	var err error
	if b.tx != nil {
		res, err = b.tx.ExecContext(ctx, query, args...)
	} else {
		res, err = b.conn.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return nil, dialect.Wrap(ctx, b.dialect, err, op)
	}
	return res, nil
}

// QueryContext runs query on the open transaction, or directly on the
// connection when there is none.
func (b *Backend) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	const op = "backend.(Backend).QueryContext"
	if len(args) > 0 {
		query = b.dialect.Rebind(query)
	}
	var rows *sql.Rows
	var err error
	if b.tx != nil {
		rows, err = b.tx.QueryContext(ctx, query, args...)
	} else {
		rows, err = b.conn.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, dialect.Wrap(ctx, b.dialect, err, op)
	}
	return rows, nil
}

// Transaction runs fn inside a transaction.  When a transaction is already
// open the call becomes a savepoint instead, so fn's changes can be undone
// without losing the enclosing work.  If fn returns an error the transaction
// or savepoint is rolled back and fn's error is returned unchanged.  A nested
// call that succeeds leaves its savepoint in place; the enclosing transaction
// decides the outcome.
//
// Inside DisableTransactions fn runs directly on the connection.
func (b *Backend) Transaction(ctx context.Context, fn func(context.Context) error) error {
	const op = "backend.(Backend).Transaction"
	switch {
	case fn == nil:
		return errors.New(ctx, errors.InvalidParameter, op, "missing function")
	case b.autocommit:
		return fn(ctx)
	case b.tx != nil:
		return b.savepointTransaction(ctx, fn)
	}

	logger := hclog.FromContext(ctx)
	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return dialect.Wrap(ctx, b.dialect, err, op)
	}
	logger.Trace("begin transaction")
	b.tx = tx
	b.savepoints = 0
	if err := fn(ctx); err != nil {
		b.tx = nil
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("could not roll back transaction", "error", rbErr)
		}
		logger.Trace("rolled back transaction")
		return err
	}
	b.tx = nil
	if err := tx.Commit(); err != nil {
		return dialect.Wrap(ctx, b.dialect, err, op)
	}
	logger.Trace("committed transaction")
	return nil
}

func (b *Backend) savepointTransaction(ctx context.Context, fn func(context.Context) error) error {
	b.savepoints++
	name := fmt.Sprintf("sp_%d", b.savepoints)
	if err := b.Savepoint(ctx, name); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := b.SavepointRollback(ctx, name); rbErr != nil {
			hclog.FromContext(ctx).Warn("could not roll back savepoint", "savepoint", name, "error", rbErr)
		}
		return err
	}
	return nil
}

// Savepoint creates a named savepoint in the open transaction.
func (b *Backend) Savepoint(ctx context.Context, name string) error {
	return b.savepointStatement(ctx, "backend.(Backend).Savepoint", "SAVEPOINT %s", name)
}

// SavepointRelease releases a named savepoint, keeping its changes.
func (b *Backend) SavepointRelease(ctx context.Context, name string) error {
	return b.savepointStatement(ctx, "backend.(Backend).SavepointRelease", "RELEASE SAVEPOINT %s", name)
}

// SavepointRollback undoes the changes made since the named savepoint.
func (b *Backend) SavepointRollback(ctx context.Context, name string) error {
	return b.savepointStatement(ctx, "backend.(Backend).SavepointRollback", "ROLLBACK TO SAVEPOINT %s", name)
}

func (b *Backend) savepointStatement(ctx context.Context, op errors.Op, format, name string) error {
	if b.tx == nil {
		return errors.New(ctx, errors.TransactionState, op, "no pending transaction")
	}
	hclog.FromContext(ctx).Trace("savepoint", "statement", fmt.Sprintf(format, name))
	if _, err := b.tx.ExecContext(ctx, fmt.Sprintf(format, b.dialect.QuoteIdentifier(name))); err != nil {
		return dialect.Wrap(ctx, b.dialect, err, op)
	}
	return nil
}

// DisableTransactions runs fn in autocommit mode.  Transaction calls made by
// fn execute their function directly.  It is an error to call it while a
// transaction is open.
func (b *Backend) DisableTransactions(ctx context.Context, fn func(context.Context) error) error {
	const op = "backend.(Backend).DisableTransactions"
	switch {
	case fn == nil:
		return errors.New(ctx, errors.InvalidParameter, op, "missing function")
	case b.tx != nil:
		return errors.New(ctx, errors.TransactionState, op, "cannot disable transactions while a transaction is open")
	case b.autocommit:
		return fn(ctx)
	}
	b.autocommit = true
	defer func() { b.autocommit = false }()
	return fn(ctx)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryRow scans a single row into dest.
func (b *Backend) queryRow(ctx context.Context, op errors.Op, query string, args []any, dest ...any) error {
	if len(args) > 0 {
		query = b.dialect.Rebind(query)
	}
	var q rowQuerier = b.conn
	if b.tx != nil {
		q = b.tx
	}
	if err := q.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return dialect.Wrap(ctx, b.dialect, err, op)
	}
	return nil
}

func (b *Backend) wrap(ctx context.Context, err error, op errors.Op) error {
	return dialect.Wrap(ctx, b.dialect, err, op)
}

func (b *Backend) quote(name string) string {
	return b.dialect.QuoteIdentifier(name)
}
