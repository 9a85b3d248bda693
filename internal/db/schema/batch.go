// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/db/schema/internal/log"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

// ApplyMigrations applies the members of c in order while holding the
// migration lock, then runs c's post-apply hooks.  Members already applied
// when the lock is taken are skipped, as are migrations that fail to load.
// Any other failure stops the batch; the error names the failed migration and
// the last one applied.  Supports the WithForce option.
func (m *Manager) ApplyMigrations(ctx context.Context, c *migration.Collection, opt ...Option) error {
	const op = "schema.(Manager).ApplyMigrations"
	ctx = m.context(ctx)
	if c.Len() == 0 {
		return nil
	}
	return m.withLock(ctx, op, func(ctx context.Context) error {
		ran, err := m.runBatch(ctx, c, migration.Apply, opt...)
		if err != nil || ran == 0 {
			return err
		}
		return m.runPostApply(ctx, c)
	})
}

// RollbackMigrations rolls back the members of c in order while holding the
// migration lock, then runs c's post-apply hooks.  Members not applied when
// the lock is taken are skipped.  Callers normally pass the result of
// ToRollback.  Supports the WithForce option.
func (m *Manager) RollbackMigrations(ctx context.Context, c *migration.Collection, opt ...Option) error {
	const op = "schema.(Manager).RollbackMigrations"
	ctx = m.context(ctx)
	if c.Len() == 0 {
		return nil
	}
	return m.withLock(ctx, op, func(ctx context.Context) error {
		ran, err := m.runBatch(ctx, c, migration.Rollback, opt...)
		if err != nil || ran == 0 {
			return err
		}
		return m.runPostApply(ctx, c)
	})
}

// ReapplyMigrations rolls back the members of c, most dependent first, and
// applies them again in dependency order.  The lock is held throughout and
// the post-apply hooks run once at the end.  Supports the WithForce option.
func (m *Manager) ReapplyMigrations(ctx context.Context, c *migration.Collection, opt ...Option) error {
	const op = "schema.(Manager).ReapplyMigrations"
	ctx = m.context(ctx)
	if c.Len() == 0 {
		return nil
	}
	sorted, err := c.Sorted(ctx)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return m.withLock(ctx, op, func(ctx context.Context) error {
		rolledBack, err := m.runBatch(ctx, sorted.Reversed(), migration.Rollback, opt...)
		if err != nil {
			return err
		}
		applied, err := m.runBatch(ctx, sorted, migration.Apply, opt...)
		if err != nil || rolledBack+applied == 0 {
			return err
		}
		return m.runPostApply(ctx, sorted)
	})
}

// RunPostApply runs the post-apply hooks carried by c.
func (m *Manager) RunPostApply(ctx context.Context, c *migration.Collection) error {
	const op = "schema.(Manager).RunPostApply"
	if err := m.runPostApply(m.context(ctx), c); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

func (m *Manager) runPostApply(ctx context.Context, c *migration.Collection) error {
	for _, hook := range c.PostApply() {
		if err := m.ApplyOne(ctx, hook); err != nil {
			return err
		}
	}
	return nil
}

// runBatch runs the members of c in direction d and returns how many ran.
// It must be called with the lock held: the applied state is read per
// migration so that work finished by another process is not repeated.
func (m *Manager) runBatch(ctx context.Context, c *migration.Collection, d migration.Direction, opt ...Option) (int, error) {
	const op = "schema.(Manager).runBatch"
	logger := hclog.FromContext(ctx)
	one := m.ApplyOne
	if d == migration.Rollback {
		one = m.RollbackOne
	}
	ran := 0
	last := ""
	for _, mg := range c.All() {
		if !mg.IsPostApply() {
			applied, err := m.backend.IsApplied(ctx, mg.Id())
			if err != nil {
				return ran, errors.Wrap(ctx, err, op)
			}
			if applied == (d == migration.Apply) {
				logger.Info("skipping migration already in the target state", "migration", mg.Id(), "direction", d.String())
				continue
			}
		}
		err := one(ctx, mg, opt...)
		switch {
		case err == nil:
			ran++
			last = mg.Id()
		case errors.IsBadMigration(err):
			logger.Error("skipping migration", "migration", mg.Id(), "direction", d.String(), "error", err)
		case last == "":
			return ran, errors.Wrap(ctx, err, op, errors.WithMsg("%s of %q failed; no migrations were processed", d, mg.Id()))
		default:
			return ran, errors.Wrap(ctx, err, op, errors.WithMsg("%s of %q failed; last successful %s was %q", d, mg.Id(), d, last))
		}
	}
	return ran, nil
}

// MarkMigrations records the members of c as applied without running them.
// Members already recorded and post-apply hooks are left alone.  All records
// are written in one transaction.
func (m *Manager) MarkMigrations(ctx context.Context, c *migration.Collection) error {
	const op = "schema.(Manager).MarkMigrations"
	ctx = m.context(ctx)
	return m.withLock(ctx, op, func(ctx context.Context) error {
		return m.backend.Transaction(ctx, func(ctx context.Context) error {
			for _, mg := range c.All() {
				if mg.IsPostApply() {
					continue
				}
				applied, err := m.backend.IsApplied(ctx, mg.Id())
				if err != nil {
					return err
				}
				if applied {
					continue
				}
				hclog.FromContext(ctx).Info("marking migration applied", "migration", mg.Id())
				if err := m.backend.MarkApplied(ctx, mg.Id()); err != nil {
					return err
				}
				if err := m.backend.LogOperation(ctx, mg.Id(), log.OpMark); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// UnmarkMigrations removes the records of the members of c without running
// their rollback steps.  All records are removed in one transaction.
func (m *Manager) UnmarkMigrations(ctx context.Context, c *migration.Collection) error {
	const op = "schema.(Manager).UnmarkMigrations"
	ctx = m.context(ctx)
	return m.withLock(ctx, op, func(ctx context.Context) error {
		return m.backend.Transaction(ctx, func(ctx context.Context) error {
			for _, mg := range c.All() {
				applied, err := m.backend.IsApplied(ctx, mg.Id())
				if err != nil {
					return err
				}
				if !applied {
					continue
				}
				hclog.FromContext(ctx).Info("marking migration unapplied", "migration", mg.Id())
				if err := m.backend.MarkUnapplied(ctx, mg.Id()); err != nil {
					return err
				}
				if err := m.backend.LogOperation(ctx, mg.Id(), log.OpUnmark); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
