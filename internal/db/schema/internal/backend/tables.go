// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/errors"
)

const (
	createMigrationTable = `CREATE TABLE %s (id VARCHAR(255) NOT NULL PRIMARY KEY, ctime TIMESTAMP)`
	createLockTable      = `CREATE TABLE %s (locked INT DEFAULT 1 NOT NULL PRIMARY KEY, ctime TIMESTAMP, pid INT NOT NULL)`
	createLogTable       = `CREATE TABLE %s (id VARCHAR(36) NOT NULL PRIMARY KEY, migration_id VARCHAR(255), operation VARCHAR(10), username VARCHAR(255), hostname VARCHAR(255), created_at_utc TIMESTAMP)`
)

// EnsureInternalSchema creates the bookkeeping, lock and log tables when they
// do not exist.  It must be called outside a transaction.
func (b *Backend) EnsureInternalSchema(ctx context.Context) error {
	const op = "backend.(Backend).EnsureInternalSchema"
	if b.tx != nil {
		return errors.New(ctx, errors.TransactionState, op, "cannot create internal tables inside a transaction")
	}
	tables := []struct {
		name   string
		create string
	}{
		{name: b.migrationTable, create: createMigrationTable},
		{name: b.lockTable, create: createLockTable},
		{name: b.logTable, create: createLogTable},
	}
	for _, t := range tables {
		if err := b.ensureTable(ctx, t.name, t.create); err != nil {
			return errors.Wrap(ctx, err, op)
		}
	}
	return nil
}

func (b *Backend) ensureTable(ctx context.Context, name, create string) error {
	const op = "backend.(Backend).ensureTable"
	exists, err := b.tableExists(ctx, name)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if exists {
		return nil
	}
	hclog.FromContext(ctx).Debug("creating table", "table", name)
	return b.Transaction(ctx, func(ctx context.Context) error {
		_, err := b.ExecContext(ctx, fmt.Sprintf(create, b.quote(name)))
		return err
	})
}

// tableExists probes name with a query that never returns rows.  It runs
// directly on the connection so a failed probe cannot abort a transaction.
func (b *Backend) tableExists(ctx context.Context, name string) (bool, error) {
	rows, err := b.conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", b.quote(name)))
	if err != nil {
		wrapped := b.wrap(ctx, err, "backend.(Backend).tableExists")
		if errors.IsMissingTableError(wrapped) {
			return false, nil
		}
		return false, wrapped
	}
	return true, rows.Close()
}

// Applied returns the ids recorded in the bookkeeping table with the time
// each was applied.
func (b *Backend) Applied(ctx context.Context) (map[string]time.Time, error) {
	const op = "backend.(Backend).Applied"
	rows, err := b.QueryContext(ctx, fmt.Sprintf("SELECT id, ctime FROM %s", b.quote(b.migrationTable)))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	defer rows.Close()
	applied := map[string]time.Time{}
	for rows.Next() {
		var id string
		var ctime any
		if err := rows.Scan(&id, &ctime); err != nil {
			return nil, b.wrap(ctx, err, op)
		}
		t, err := scanTime(ctime)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op, errors.WithMsg("bad ctime for migration %q", id))
		}
		applied[id] = t
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap(ctx, err, op)
	}
	return applied, nil
}

// IsApplied reports whether id is recorded in the bookkeeping table.
func (b *Backend) IsApplied(ctx context.Context, id string) (bool, error) {
	const op = "backend.(Backend).IsApplied"
	var n int
	q := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE id = ?", b.quote(b.migrationTable))
	if err := b.queryRow(ctx, op, q, []any{id}, &n); err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return n > 0, nil
}

// MarkApplied records id in the bookkeeping table.
func (b *Backend) MarkApplied(ctx context.Context, id string) error {
	const op = "backend.(Backend).MarkApplied"
	q := fmt.Sprintf("INSERT INTO %s (id, ctime) VALUES (?, ?)", b.quote(b.migrationTable))
	if _, err := b.ExecContext(ctx, q, id, time.Now().UTC()); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithMsg("could not record migration %q", id))
	}
	return nil
}

// MarkUnapplied removes id from the bookkeeping table.
func (b *Backend) MarkUnapplied(ctx context.Context, id string) error {
	const op = "backend.(Backend).MarkUnapplied"
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", b.quote(b.migrationTable))
	if _, err := b.ExecContext(ctx, q, id); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithMsg("could not remove record of migration %q", id))
	}
	return nil
}
