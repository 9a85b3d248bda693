// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"slices"

	"github.com/hashicorp/strata/internal/errors"
)

// Builder collects the steps and dependencies declared by a LoadFunc.  It is
// the only surface a migration definition can use.
type Builder struct {
	steps            []*Transaction
	depends          []string
	nonTransactional bool
	nextId           int
	err              error
}

func newBuilder() *Builder {
	return &Builder{}
}

// StepOption configures a step or transaction declared with a Builder.
type StepOption func(*stepOptions)

type stepOptions struct {
	withIgnoreErrors IgnoreErrors
}

func getStepOpts(opt ...StepOption) stepOptions {
	var opts stepOptions
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithIgnoreErrors sets the error tolerance policy.
func WithIgnoreErrors(i IgnoreErrors) StepOption {
	return func(o *stepOptions) {
		o.withIgnoreErrors = i
	}
}

// Step declares a step, wrapped in its own transaction, and returns that
// transaction.  rollback may be nil.
func (b *Builder) Step(apply, rollback Action, opt ...StepOption) *Transaction {
	opts := getStepOpts(opt...)
	t := &Transaction{
		Steps:        []*Step{{Id: b.nextId, Apply: apply, Rollback: rollback}},
		IgnoreErrors: opts.withIgnoreErrors,
	}
	b.nextId++
	b.steps = append(b.steps, t)
	return t
}

// Transaction moves previously declared steps into a single transaction.
// Each element of steps must be a single step returned by Step without its
// own error policy; transactions cannot be nested.
func (b *Builder) Transaction(steps []*Transaction, opt ...StepOption) *Transaction {
	const op = "migration.(Builder).Transaction"
	opts := getStepOpts(opt...)
	group := &Transaction{IgnoreErrors: opts.withIgnoreErrors}
	for _, old := range steps {
		switch {
		case old == nil:
			b.fail(errors.New(context.TODO(), errors.InvalidParameter, op, "missing step"))
			return group
		case old.IgnoreErrors != IgnoreNone:
			b.fail(errors.New(context.TODO(), errors.InvalidParameter, op, "ignore_errors cannot be specified within a transaction"))
			return group
		case len(old.Steps) != 1:
			b.fail(errors.New(context.TODO(), errors.InvalidParameter, op, "transactions cannot be nested"))
			return group
		}
		idx := slices.Index(b.steps, old)
		if idx < 0 {
			b.fail(errors.New(context.TODO(), errors.InvalidParameter, op, "step was not declared by this migration or is already part of a transaction"))
			return group
		}
		group.Steps = append(group.Steps, old.Steps[0])
		b.steps = slices.Delete(b.steps, idx, idx+1)
	}
	b.steps = append(b.steps, group)
	return group
}

// Depends declares the ids of migrations that must be applied first.
func (b *Builder) Depends(ids ...string) {
	for _, id := range ids {
		if !slices.Contains(b.depends, id) {
			b.depends = append(b.depends, id)
		}
	}
}

// NonTransactional runs the migration outside any transaction.  Use it for
// statements an engine refuses to run in a transaction block.
func (b *Builder) NonTransactional() {
	b.nonTransactional = true
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
