// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

// Package schema applies and rolls back migrations against a database and
// keeps the record of which migrations have been applied.
package schema

import (
	"context"

	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/errors"
)

// Open connects to the database at uri and returns a Manager for it.  The
// Manager closes the connection pool when it is closed.
func Open(ctx context.Context, uri string, opt ...Option) (*Manager, error) {
	const op = "schema.Open"
	db, u, err := common.Open(ctx, uri)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	m, err := NewManager(ctx, u.Dialect(), db, opt...)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(ctx, err, op)
	}
	m.ownsDb = true
	return m, nil
}
