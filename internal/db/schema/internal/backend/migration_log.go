// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/hashicorp/strata/internal/db/schema/internal/log"
	"github.com/hashicorp/strata/internal/errors"
)

// LogOperation appends a row to the migration log.  Call it inside the
// transaction that changes the bookkeeping table so both commit together.
func (b *Backend) LogOperation(ctx context.Context, migrationId string, operation log.Operation) error {
	const op = "backend.(Backend).LogOperation"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	q := fmt.Sprintf("INSERT INTO %s (id, migration_id, operation, username, hostname, created_at_utc) VALUES (?, ?, ?, ?, ?, ?)", b.quote(b.logTable))
	if _, err := b.ExecContext(ctx, q, id, migrationId, string(operation), username(), hostname(), time.Now().UTC()); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// GetMigrationLog will retrieve the migration log entries, oldest first.
// Supported options are WithMigrationId, WithLimit, which keeps the newest
// entries, and WithDeleteLog, which removes the entries after reading them.
func (b *Backend) GetMigrationLog(ctx context.Context, opt ...log.Option) ([]*log.Entry, error) {
	const op = "backend.(Backend).GetMigrationLog"
	opts := log.GetOpts(opt...)

	q := fmt.Sprintf("SELECT id, migration_id, operation, username, hostname, created_at_utc FROM %s", b.quote(b.logTable))
	var args []any
	if opts.WithMigrationId != "" {
		q += " WHERE migration_id = ?"
		args = append(args, opts.WithMigrationId)
	}
	rows, err := b.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	defer rows.Close()

	var entries []*log.Entry
	for rows.Next() {
		e := &log.Entry{}
		var operation string
		var created any
		if err := rows.Scan(&e.Id, &e.MigrationId, &operation, &e.Username, &e.Hostname, &created); err != nil {
			return nil, b.wrap(ctx, err, op)
		}
		e.Operation = log.Operation(operation)
		if e.CreateTime, err = scanTime(created); err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap(ctx, err, op)
	}
	rows.Close()

	slices.SortStableFunc(entries, func(x, y *log.Entry) int { return x.CreateTime.Compare(y.CreateTime) })
	if opts.WithLimit > 0 && len(entries) > opts.WithLimit {
		entries = entries[len(entries)-opts.WithLimit:]
	}

	if opts.WithDeleteLog && len(entries) > 0 {
		del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", b.quote(b.logTable))
		err := b.Transaction(ctx, func(ctx context.Context) error {
			for _, e := range entries {
				if _, err := b.ExecContext(ctx, del, e.Id); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
	}
	return entries, nil
}

func username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(h)
}
