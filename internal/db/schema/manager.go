// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"context"
	"database/sql"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/db/schema/internal/backend"
	"github.com/hashicorp/strata/internal/db/schema/internal/dialect"
	"github.com/hashicorp/strata/internal/db/schema/internal/log"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

// Manager provides a way to run operations and retrieve information regarding
// the migrations applied to a database.  It owns a single connection from the
// sql.DB it was created with.
// Manager is not thread safe.
type Manager struct {
	db      *sql.DB
	ownsDb  bool
	backend *backend.Backend
	logger  hclog.Logger

	lockTimeout      time.Duration
	transactionalDDL bool
}

// NewManager creates a new schema manager.  The bookkeeping, lock and log
// tables are created when missing and the engine is probed for transactional
// DDL.  An error is returned if the provided dialect is unrecognized or if the
// passed in db is unreachable.
//
// Supported options are WithLogger, WithLockTimeout, WithMigrationTable,
// WithLockTable, WithLogTable, WithPid and WithLockPollInterval.
func NewManager(ctx context.Context, dialectName string, db *sql.DB, opt ...Option) (*Manager, error) {
	const op = "schema.NewManager"
	d, err := dialect.New(dialectName)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	opts := getOpts(opt...)
	m := &Manager{
		db:          db,
		logger:      opts.withLogger,
		lockTimeout: opts.withLockTimeout,
	}
	ctx = m.context(ctx)

	bopts := []backend.Option{
		backend.WithMigrationTable(opts.withMigrationTable),
		backend.WithLockTable(opts.withLockTable),
		backend.WithLogTable(opts.withLogTable),
		backend.WithLockPollInterval(opts.withLockPollInterval),
	}
	if opts.withPid != 0 {
		bopts = append(bopts, backend.WithPid(opts.withPid))
	}
	if m.backend, err = backend.New(ctx, d, db, bopts...); err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if err := m.backend.EnsureInternalSchema(ctx); err != nil {
		_ = m.backend.Close()
		return nil, errors.Wrap(ctx, err, op)
	}
	if m.transactionalDDL, err = m.backend.HasTransactionalDDL(ctx); err != nil {
		_ = m.backend.Close()
		return nil, errors.Wrap(ctx, err, op)
	}
	return m, nil
}

// Close releases the Manager's connection.  The sql.DB is closed as well when
// the Manager opened it.
func (m *Manager) Close() error {
	const op = "schema.(Manager).Close"
	err := m.backend.Close()
	if m.ownsDb {
		if dbErr := m.db.Close(); err == nil {
			err = dbErr
		}
	}
	if err != nil {
		return errors.Wrap(context.Background(), err, op)
	}
	return nil
}

// Dialect returns the name of the database dialect.
func (m *Manager) Dialect() string { return m.backend.Dialect().Name() }

// HasTransactionalDDL reports whether schema changes are undone when a
// transaction rolls back on this database.
func (m *Manager) HasTransactionalDDL() bool { return m.transactionalDDL }

// context attaches the Manager's logger, if it has one, to ctx.
func (m *Manager) context(ctx context.Context) context.Context {
	if m.logger == nil {
		return ctx
	}
	return hclog.WithContext(ctx, m.logger)
}

// ToApply returns the members of c that have not been applied, in dependency
// order.
func (m *Manager) ToApply(ctx context.Context, c *migration.Collection) (*migration.Collection, error) {
	const op = "schema.(Manager).ToApply"
	ctx = m.context(ctx)
	applied, err := m.backend.Applied(ctx)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	pending, err := c.Filter(func(mg *migration.Migration) bool {
		_, ok := applied[mg.Id()]
		return !ok
	}).Sorted(ctx)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return pending, nil
}

// ToRollback returns the members of c that have been applied, most dependent
// first.
func (m *Manager) ToRollback(ctx context.Context, c *migration.Collection) (*migration.Collection, error) {
	const op = "schema.(Manager).ToRollback"
	ctx = m.context(ctx)
	applied, err := m.backend.Applied(ctx)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	done, err := c.Filter(func(mg *migration.Migration) bool {
		_, ok := applied[mg.Id()]
		return ok
	}).Sorted(ctx)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return done.Reversed(), nil
}

// ApplyOne runs the steps of mg and records it as applied.  A post-apply hook
// is run with force and never recorded.  Supports the WithForce option.
func (m *Manager) ApplyOne(ctx context.Context, mg *migration.Migration, opt ...Option) error {
	const op = "schema.(Manager).ApplyOne"
	ctx = m.context(ctx)
	opts := getOpts(opt...)
	logger := hclog.FromContext(ctx)

	if mg.IsPostApply() {
		logger.Info("running post-apply hook", "migration", mg.Id())
		if err := mg.Apply(ctx, m.backend, true); err != nil {
			return errors.Wrap(ctx, err, op)
		}
		return nil
	}

	logger.Info("applying migration", "migration", mg.Id())
	if err := mg.Apply(ctx, m.backend, opts.withForce); err != nil {
		m.warnNonTransactional(ctx, mg)
		return errors.Wrap(ctx, err, op)
	}
	err := m.backend.Transaction(ctx, func(ctx context.Context) error {
		if err := m.backend.MarkApplied(ctx, mg.Id()); err != nil {
			return err
		}
		return m.backend.LogOperation(ctx, mg.Id(), log.OpApply)
	})
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// RollbackOne runs the rollback steps of mg and removes its record.  Supports
// the WithForce option.
func (m *Manager) RollbackOne(ctx context.Context, mg *migration.Migration, opt ...Option) error {
	const op = "schema.(Manager).RollbackOne"
	ctx = m.context(ctx)
	opts := getOpts(opt...)

	hclog.FromContext(ctx).Info("rolling back migration", "migration", mg.Id())
	if err := mg.Rollback(ctx, m.backend, opts.withForce); err != nil {
		m.warnNonTransactional(ctx, mg)
		return errors.Wrap(ctx, err, op)
	}
	err := m.backend.Transaction(ctx, func(ctx context.Context) error {
		if err := m.backend.MarkUnapplied(ctx, mg.Id()); err != nil {
			return err
		}
		return m.backend.LogOperation(ctx, mg.Id(), log.OpRollback)
	})
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// warnNonTransactional notes that a failed migration may have left schema
// changes behind.
func (m *Manager) warnNonTransactional(ctx context.Context, mg *migration.Migration) {
	transactional, err := mg.IsTransactional(ctx)
	if err != nil {
		return
	}
	if !transactional || !m.transactionalDDL {
		hclog.FromContext(ctx).Warn("schema changes made before the failure may not have been undone", "migration", mg.Id(), "dialect", m.Dialect())
	}
}
