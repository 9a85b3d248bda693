// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"context"
	"time"

	"github.com/hashicorp/strata/internal/db/schema/internal/log"
	"github.com/hashicorp/strata/internal/errors"
)

// LogEntry represents a change recorded in the migration log.
type LogEntry struct {
	Id          string
	MigrationId string
	Operation   string
	Username    string
	Hostname    string
	CreateTime  time.Time
}

// GetMigrationLog will retrieve the migration log entries from the db, oldest
// first.  The WithDeleteLog option is supported and will remove the entries
// that were read.  WithMigrationId and WithLimit narrow the entries returned.
func (m *Manager) GetMigrationLog(ctx context.Context, opt ...Option) ([]LogEntry, error) {
	const op = "schema.(Manager).GetMigrationLog"

	var logOpts []log.Option
	opts := getOpts(opt...)
	if opts.withDeleteLog {
		logOpts = append(logOpts, log.WithDeleteLog(opts.withDeleteLog))
	}
	if opts.withMigrationId != "" {
		logOpts = append(logOpts, log.WithMigrationId(opts.withMigrationId))
	}
	if opts.withLimit > 0 {
		logOpts = append(logOpts, log.WithLimit(opts.withLimit))
	}

	entries, err := m.backend.GetMigrationLog(m.context(ctx), logOpts...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}

	logEntries := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		logEntries = append(logEntries, LogEntry{
			Id:          e.Id,
			MigrationId: e.MigrationId,
			Operation:   string(e.Operation),
			Username:    e.Username,
			Hostname:    e.Hostname,
			CreateTime:  e.CreateTime,
		})
	}

	return logEntries, nil
}
