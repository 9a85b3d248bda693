// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"context"
	"time"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

// Status is the applied state of one migration.
type Status struct {
	Migration *migration.Migration
	Applied   bool
	AppliedAt time.Time
}

// Status returns the applied state of each member of c, in collection order.
func (m *Manager) Status(ctx context.Context, c *migration.Collection) ([]Status, error) {
	const op = "schema.(Manager).Status"
	applied, err := m.backend.Applied(m.context(ctx))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	statuses := make([]Status, 0, c.Len())
	for _, mg := range c.All() {
		at, ok := applied[mg.Id()]
		statuses = append(statuses, Status{Migration: mg, Applied: ok, AppliedAt: at})
	}
	return statuses, nil
}

// Applied returns the ids recorded as applied with the time each was
// applied.  Records with no matching migration are included.
func (m *Manager) Applied(ctx context.Context) (map[string]time.Time, error) {
	const op = "schema.(Manager).Applied"
	applied, err := m.backend.Applied(m.context(ctx))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return applied, nil
}
