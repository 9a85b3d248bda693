// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package dialect

import (
	"context"
	"strings"

	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/errors"
	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqlite struct{}

func (*sqlite) Name() string { return common.Sqlite }

func (*sqlite) Init(context.Context, Querier) error { return nil }

func (*sqlite) QuoteIdentifier(name string) string { return quoteWith(`"`, name) }

func (*sqlite) Rebind(query string) string { return query }

func (*sqlite) ClassifyError(err error) errors.Code {
	var liteErr *driver.Error
	if !errors.As(err, &liteErr) {
		return errors.Unknown
	}
	switch liteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return errors.Contention
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return errors.NotUnique
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return errors.NotNull
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return errors.CheckConstraint
	}
	// the extended code is not always reported, fall back to the message
	msg := liteErr.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return errors.NotUnique
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return errors.NotNull
	case strings.Contains(msg, "CHECK constraint failed"):
		return errors.CheckConstraint
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return errors.Contention
	case strings.Contains(msg, "no such table"):
		return errors.MissingTable
	default:
		return errors.NotSpecificIntegrity
	}
}
