// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"fmt"

	"github.com/hashicorp/strata/internal/errors"
)

// Registry maps migration ids to migrations for one read of the migration
// sources.  Dependencies are resolved against the registry a migration was
// added to.
type Registry struct {
	byId map[string]*Migration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byId: map[string]*Migration{}}
}

// Add registers m.  Adding a second migration with the same id is a
// MigrationConflict.
func (r *Registry) Add(m *Migration) error {
	const op = "migration.(Registry).Add"
	if m == nil {
		return errors.New(context.TODO(), errors.InvalidParameter, op, "missing migration")
	}
	if existing, ok := r.byId[m.id]; ok && existing != m {
		return errors.New(context.TODO(), errors.MigrationConflict, op,
			fmt.Sprintf("migration %q from %s conflicts with %s", m.id, m.source, existing.source))
	}
	r.byId[m.id] = m
	m.registry = r
	return nil
}

// Get returns the migration registered under id.
func (r *Registry) Get(id string) (*Migration, bool) {
	m, ok := r.byId[id]
	return m, ok
}

// Len returns the number of registered migrations.
func (r *Registry) Len() int {
	return len(r.byId)
}
