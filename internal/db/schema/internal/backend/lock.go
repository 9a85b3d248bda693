// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/errors"
)

// Lock takes the migration lock by inserting the single lock row.  While
// another process holds the row Lock polls until it succeeds or timeout has
// passed since the call started, then fails with LockTimeout naming the
// holder's pid.  An attempt that finds the database busy is retried the same
// way.  A Backend that already holds the lock only counts the extra
// call; each Lock needs a matching Unlock.
//
// Lock must be called outside a transaction.
func (b *Backend) Lock(ctx context.Context, timeout time.Duration) error {
	const op = "backend.(Backend).Lock"
	if b.tx != nil {
		return errors.New(ctx, errors.TransactionState, op, "cannot take the lock inside a transaction")
	}
	if b.lockDepth > 0 {
		b.lockDepth++
		return nil
	}
	logger := hclog.FromContext(ctx)
	insert := fmt.Sprintf("INSERT INTO %s (locked, ctime, pid) VALUES (1, ?, ?)", b.quote(b.lockTable))

	start := time.Now()
	attempt := func() error {
		err := b.Transaction(ctx, func(ctx context.Context) error {
			_, err := b.ExecContext(ctx, insert, time.Now().UTC(), b.pid)
			return err
		})
		switch {
		case err == nil:
			return nil
		case !errors.IsUniqueError(err) && !errors.IsContentionError(err):
			return backoff.Permanent(err)
		case time.Since(start) >= timeout:
			msg := "database is locked"
			if pid, ok := b.lockHolder(ctx); ok {
				msg = fmt.Sprintf("database is locked by process %d", pid)
			}
			return backoff.Permanent(errors.New(ctx, errors.LockTimeout, op, msg, errors.WithWrap(err)))
		default:
			logger.Debug("waiting for lock", "elapsed", time.Since(start).String())
			return err
		}
	}
	if err := backoff.Retry(attempt, backoff.WithContext(backoff.NewConstantBackOff(b.lockPoll), ctx)); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	b.lockDepth = 1
	logger.Debug("took lock", "pid", b.pid)
	return nil
}

// lockHolder returns the pid recorded in the lock row, if any.
func (b *Backend) lockHolder(ctx context.Context) (int, bool) {
	const op = "backend.(Backend).lockHolder"
	var pid int
	q := fmt.Sprintf("SELECT pid FROM %s", b.quote(b.lockTable))
	if err := b.queryRow(ctx, op, q, nil, &pid); err != nil {
		return 0, false
	}
	return pid, true
}

// Unlock releases a lock taken by Lock.  Only the row carrying this
// process's pid is removed.
func (b *Backend) Unlock(ctx context.Context) error {
	const op = "backend.(Backend).Unlock"
	switch {
	case b.lockDepth == 0:
		return errors.New(ctx, errors.LockNotHeld, op, "lock is not held")
	case b.lockDepth > 1:
		b.lockDepth--
		return nil
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE pid = ?", b.quote(b.lockTable))
	err := b.retryContention(ctx, func() error {
		return b.Transaction(ctx, func(ctx context.Context) error {
			_, err := b.ExecContext(ctx, q, b.pid)
			return err
		})
	})
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	b.lockDepth = 0
	hclog.FromContext(ctx).Debug("released lock", "pid", b.pid)
	return nil
}

// BreakLock removes the lock row whoever holds it.
func (b *Backend) BreakLock(ctx context.Context) error {
	const op = "backend.(Backend).BreakLock"
	q := fmt.Sprintf("DELETE FROM %s", b.quote(b.lockTable))
	err := b.retryContention(ctx, func() error {
		return b.Transaction(ctx, func(ctx context.Context) error {
			_, err := b.ExecContext(ctx, q)
			return err
		})
	})
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	b.lockDepth = 0
	return nil
}

// maxContentionRetries bounds how often Unlock and BreakLock retry a busy
// database.
const maxContentionRetries = 10

// retryContention runs fn again at the poll interval while it fails with a
// contention error.
func (b *Backend) retryContention(ctx context.Context, fn func() error) error {
	attempt := func() error {
		err := fn()
		if err != nil && !errors.IsContentionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(b.lockPoll), maxContentionRetries), ctx))
}

// LockStatus reports the pid and time recorded in the lock row.  held is
// false when no row exists.
func (b *Backend) LockStatus(ctx context.Context) (pid int, since time.Time, held bool, err error) {
	const op = "backend.(Backend).LockStatus"
	var ctime any
	q := fmt.Sprintf("SELECT pid, ctime FROM %s", b.quote(b.lockTable))
	switch err := b.queryRow(ctx, op, q, nil, &pid, &ctime); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, time.Time{}, false, nil
	case err != nil:
		return 0, time.Time{}, false, errors.Wrap(ctx, err, op)
	}
	since, err = scanTime(ctime)
	if err != nil {
		return 0, time.Time{}, false, errors.Wrap(ctx, err, op)
	}
	return pid, since, true, nil
}
