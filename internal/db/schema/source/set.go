// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source

import (
	"context"
	"fmt"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

// Set is a source of migrations defined in Go.  Migrations are returned in
// the order they were registered.
type Set struct {
	name string
	defs []Definition
	ids  map[string]bool
}

var _ Source = (*Set)(nil)

// NewSet returns an empty set.  name describes the set in messages.
func NewSet(name string) *Set {
	return &Set{name: name, ids: map[string]bool{}}
}

// Register adds a migration whose steps and dependencies are declared by
// load.  The only supported option is migration.WithPostApply.
func (s *Set) Register(id string, load migration.LoadFunc, opt ...migration.Option) error {
	const op = "source.(Set).Register"
	switch {
	case id == "":
		return errors.New(context.TODO(), errors.InvalidParameter, op, "missing migration id")
	case load == nil:
		return errors.New(context.TODO(), errors.InvalidParameter, op, "missing load function")
	case s.ids[id]:
		return errors.New(context.TODO(), errors.MigrationConflict, op, fmt.Sprintf("migration %q is already registered in %s", id, s.name))
	}
	m := migration.New(id, s.name, load, opt...)
	s.ids[id] = true
	s.defs = append(s.defs, Definition{
		Id:        id,
		Source:    s.name,
		PostApply: m.IsPostApply(),
		Load:      load,
	})
	return nil
}

// Definitions returns the registered migrations.
func (s *Set) Definitions(context.Context) ([]Definition, error) {
	return append([]Definition(nil), s.defs...), nil
}
