// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

// Package source reads migration definitions.  Migrations come from
// directories of .sql and .yaml files or from Go code registered on a Set.
// Definitions are parsed lazily, the first time a migration is loaded.
package source

import (
	"context"
	"slices"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

// Definition describes one migration before it is loaded.
type Definition struct {
	Id        string
	Source    string
	PostApply bool
	Load      migration.LoadFunc
}

// Source enumerates migration definitions in a stable order.
type Source interface {
	Definitions(ctx context.Context) ([]Definition, error)
}

// Read collects the definitions of every source into a collection.  Each
// call builds its own registry, which is used to resolve dependencies.  Post
// apply hooks are carried by the collection rather than being members.
//
// Sources that cannot be enumerated are reported together; a migration id
// defined twice is a MigrationConflict.  Supports the WithNames option.
func Read(ctx context.Context, sources []Source, opt ...Option) (*migration.Collection, error) {
	const op = "source.Read"
	opts := getOpts(opt...)
	logger := hclog.FromContext(ctx)

	registry := migration.NewRegistry()
	var ms, hooks []*migration.Migration
	var readErr *multierror.Error
	for _, s := range sources {
		defs, err := s.Definitions(ctx)
		if err != nil {
			readErr = multierror.Append(readErr, err)
			continue
		}
		for _, d := range defs {
			m := migration.New(d.Id, d.Source, d.Load, migration.WithPostApply(d.PostApply))
			if err := registry.Add(m); err != nil {
				return nil, errors.Wrap(ctx, err, op)
			}
			if d.PostApply {
				hooks = append(hooks, m)
				continue
			}
			if len(opts.withNames) > 0 && !slices.Contains(opts.withNames, d.Id) {
				continue
			}
			ms = append(ms, m)
		}
	}
	if err := readErr.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	logger.Debug("read migrations", "migrations", len(ms), "post_apply_hooks", len(hooks))
	c, err := migration.NewCollection(ms, migration.WithPostApplyHooks(hooks...))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return c, nil
}
