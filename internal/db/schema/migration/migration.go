// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/errors"
)

// LoadFunc declares the steps and dependencies of a migration.  It is called
// at most once, the first time the migration's steps or dependencies are
// needed.
type LoadFunc func(b *Builder) error

// Migration is a set of steps that will alter the database structure or data.
// A Migration is immutable once loaded.
type Migration struct {
	id        string
	source    string
	postApply bool
	load      LoadFunc
	registry  *Registry

	loaded           bool
	loadErr          error
	steps            []*Transaction
	dependIds        []string
	depends          []*Migration
	nonTransactional bool
}

// Option configures a Migration.
type Option func(*options)

type options struct {
	withPostApply bool
}

// WithPostApply marks the migration as a post-apply hook.  Hooks run after
// every successful batch and are never recorded as applied.
func WithPostApply(postApply bool) Option {
	return func(o *options) {
		o.withPostApply = postApply
	}
}

// New creates an unloaded migration.  source describes where the definition
// lives, for example a file path.
func New(id, source string, load LoadFunc, opt ...Option) *Migration {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	return &Migration{
		id:        id,
		source:    source,
		postApply: opts.withPostApply,
		load:      load,
	}
}

// Id returns the migration's unique id.
func (m *Migration) Id() string { return m.id }

// Source returns where the migration was defined.
func (m *Migration) Source() string { return m.source }

// IsPostApply reports whether m is a post-apply hook.
func (m *Migration) IsPostApply() bool { return m.postApply }

// Loaded reports whether Load has been attempted.
func (m *Migration) Loaded() bool { return m.loaded }

func (m *Migration) String() string { return m.id }

// Load runs the migration's LoadFunc and resolves its dependencies against
// the registry it was added to.  A failure is a BadMigration error and is
// remembered: later calls return the same error.
func (m *Migration) Load(ctx context.Context) error {
	const op = "migration.(Migration).Load"
	if m.loaded {
		return m.loadErr
	}
	m.loaded = true
	m.loadErr = m.doLoad(ctx)
	if m.loadErr != nil {
		m.loadErr = errors.Wrap(ctx, m.loadErr, op, errors.WithCode(errors.BadMigration), errors.WithMsg("could not load migration %q from %s", m.id, m.source))
		m.steps, m.depends, m.dependIds = nil, nil, nil
	}
	return m.loadErr
}

func (m *Migration) doLoad(ctx context.Context) (retErr error) {
	const op = "migration.(Migration).doLoad"
	if m.load == nil {
		return errors.New(ctx, errors.BadMigration, op, "missing load function")
	}
	b := newBuilder()
	defer func() {
		if r := recover(); r != nil {
			retErr = errors.New(ctx, errors.BadMigration, op, fmt.Sprintf("panic during load: %v", r))
		}
	}()
	if err := m.load(b); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}
	for _, id := range b.depends {
		if m.registry == nil {
			return errors.New(ctx, errors.BadMigration, op, fmt.Sprintf("could not resolve dependency %q: migration is not registered", id))
		}
		dep, ok := m.registry.Get(id)
		if !ok {
			return errors.New(ctx, errors.BadMigration, op, fmt.Sprintf("could not resolve dependency %q", id))
		}
		m.depends = append(m.depends, dep)
	}
	m.steps = b.steps
	m.dependIds = b.depends
	m.nonTransactional = b.nonTransactional
	return nil
}

// Steps returns the migration's step groups in declared order.
func (m *Migration) Steps(ctx context.Context) ([]*Transaction, error) {
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(m.steps), nil
}

// Depends returns the migrations m depends on, in declared order.
func (m *Migration) Depends(ctx context.Context) ([]*Migration, error) {
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(m.depends), nil
}

// DependencyIds returns the declared dependency ids.
func (m *Migration) DependencyIds(ctx context.Context) ([]string, error) {
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(m.dependIds), nil
}

// IsTransactional reports whether the migration runs inside a transaction.
func (m *Migration) IsTransactional(ctx context.Context) (bool, error) {
	if err := m.Load(ctx); err != nil {
		return false, err
	}
	return !m.nonTransactional, nil
}

// Apply runs the migration's steps forward.  It does not record the
// migration as applied.
func (m *Migration) Apply(ctx context.Context, b Backend, force bool) error {
	return m.process(ctx, b, Apply, force)
}

// Rollback runs the migration's steps in reverse.  It does not remove the
// migration's bookkeeping record.
func (m *Migration) Rollback(ctx context.Context, b Backend, force bool) error {
	return m.process(ctx, b, Rollback, force)
}

// process runs every step group in direction d.  When a group fails the
// groups already run are undone in reverse, then the original error is
// returned unchanged.
func (m *Migration) process(ctx context.Context, b Backend, d Direction, force bool) error {
	if err := m.Load(ctx); err != nil {
		return err
	}
	logger := hclog.FromContext(ctx).With("migration", m.id)
	ctx = hclog.WithContext(ctx, logger)

	groups := slices.Clone(m.steps)
	if d == Rollback {
		slices.Reverse(groups)
	}
	run := b.Transaction
	if m.nonTransactional {
		run = b.DisableTransactions
	}
	return run(ctx, func(ctx context.Context) error {
		executed := make([]*Transaction, 0, len(groups))
		for _, t := range groups {
			if err := t.run(ctx, b, d, force); err != nil {
				m.compensate(ctx, b, executed, d.Reverse())
				return err
			}
			executed = append(executed, t)
		}
		return nil
	})
}

func (m *Migration) compensate(ctx context.Context, b Backend, executed []*Transaction, d Direction) {
	logger := hclog.FromContext(ctx)
	for i := len(executed) - 1; i >= 0; i-- {
		if err := executed[i].run(ctx, b, d, false); err != nil {
			logger.Error("could not undo step", "step", stepId(firstStep(executed[i])), "direction", d.String(), "error", err)
		}
	}
}

func firstStep(t *Transaction) *Step {
	if len(t.Steps) == 0 {
		return nil
	}
	return t.Steps[0]
}
