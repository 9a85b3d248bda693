// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"database/sql"
)

// Executor runs statements against the live connection.  Errors raised by the
// database are classified before they are returned, so callers can test them
// with errors.IsDbError.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Backend is the capability a migration needs to run its steps.
type Backend interface {
	Executor

	// Transaction runs fn inside a transaction.  When a transaction is already
	// open a savepoint is used instead.  A non-nil error from fn rolls the
	// transaction or savepoint back and is returned.
	Transaction(ctx context.Context, fn func(context.Context) error) error

	// DisableTransactions runs fn outside any transaction.  Transaction calls
	// made by fn execute directly in autocommit mode.
	DisableTransactions(ctx context.Context, fn func(context.Context) error) error
}
