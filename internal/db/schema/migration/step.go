// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/errors"
)

// Direction selects which half of each step runs.
type Direction int

const (
	Apply Direction = iota
	Rollback
)

func (d Direction) String() string {
	if d == Rollback {
		return "rollback"
	}
	return "apply"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Rollback {
		return Apply
	}
	return Rollback
}

// IgnoreErrors is the error tolerance policy of a Transaction.
type IgnoreErrors string

const (
	IgnoreNone     IgnoreErrors = ""
	IgnoreApply    IgnoreErrors = "apply"
	IgnoreRollback IgnoreErrors = "rollback"
	IgnoreAll      IgnoreErrors = "all"
)

// ParseIgnoreErrors parses a policy name.  The empty string and "none" both
// mean no errors are ignored.
func ParseIgnoreErrors(s string) (IgnoreErrors, error) {
	const op = "migration.ParseIgnoreErrors"
	switch IgnoreErrors(strings.ToLower(strings.TrimSpace(s))) {
	case IgnoreNone, "none":
		return IgnoreNone, nil
	case IgnoreApply:
		return IgnoreApply, nil
	case IgnoreRollback:
		return IgnoreRollback, nil
	case IgnoreAll:
		return IgnoreAll, nil
	default:
		return IgnoreNone, errors.New(context.TODO(), errors.InvalidParameter, op,
			fmt.Sprintf("ignore_errors must be one of apply, rollback or all: got %q", s))
	}
}

func (i IgnoreErrors) covers(d Direction) bool {
	switch i {
	case IgnoreAll:
		return true
	case IgnoreApply:
		return d == Apply
	case IgnoreRollback:
		return d == Rollback
	default:
		return false
	}
}

// Action is the apply or rollback half of a step.
type Action interface {
	Run(ctx context.Context, e Executor) error
	String() string
}

// Statement is an Action that executes a literal SQL statement.  Statements
// that produce rows have them logged as a table.
type Statement string

var (
	rowsLeadingKeyword = regexp.MustCompile(`(?is)^\s*(?:(?:--[^\n]*(?:\n|$)|/\*.*?\*/)\s*)*(SELECT|WITH|SHOW|VALUES|PRAGMA|EXPLAIN|DESCRIBE|DESC|TABLE)\b`)
	returningClause    = regexp.MustCompile(`(?i)\bRETURNING\b`)
)

func (s Statement) returnsRows() bool {
	return rowsLeadingKeyword.MatchString(string(s)) || returningClause.MatchString(string(s))
}

// Run executes the statement.
func (s Statement) Run(ctx context.Context, e Executor) error {
	logger := hclog.FromContext(ctx)
	logger.Debug("executing statement", "sql", string(s))
	if !s.returnsRows() {
		_, err := e.ExecContext(ctx, string(s))
		return err
	}
	rows, err := e.QueryContext(ctx, string(s))
	if err != nil {
		return err
	}
	defer rows.Close()
	preview, n, err := formatRows(rows)
	if err != nil {
		return err
	}
	if preview != "" {
		logger.Info("statement returned rows", "sql", string(s), "rows", n, "result", preview)
	}
	return nil
}

func (s Statement) String() string { return string(s) }

// Func is an Action implemented in Go.  It receives the live connection.
type Func func(ctx context.Context, e Executor) error

// Run calls f.
func (f Func) Run(ctx context.Context, e Executor) error { return f(ctx, e) }

func (f Func) String() string { return "<go func>" }

// Step is the smallest executable unit of a migration.  A nil Rollback makes
// the step irreversible: rolling it back does nothing.
type Step struct {
	Id       int
	Apply    Action
	Rollback Action
}

func (s *Step) action(d Direction) Action {
	if d == Rollback {
		return s.Rollback
	}
	return s.Apply
}

func (s *Step) run(ctx context.Context, e Executor, d Direction) error {
	a := s.action(d)
	if a == nil {
		hclog.FromContext(ctx).Trace("nothing to do", "step", s.Id, "direction", d.String())
		return nil
	}
	return a.Run(ctx, e)
}

// Transaction is an ordered group of steps sharing one commit/rollback
// boundary and one error tolerance policy.
type Transaction struct {
	Steps        []*Step
	IgnoreErrors IgnoreErrors
}

// Apply runs the steps in declared order.
func (t *Transaction) Apply(ctx context.Context, b Backend, force bool) error {
	return t.run(ctx, b, Apply, force)
}

// Rollback runs the rollback actions of the steps in reverse order.
func (t *Transaction) Rollback(ctx context.Context, b Backend, force bool) error {
	return t.run(ctx, b, Rollback, force)
}

// run executes the group in direction d.  A database error rolls the group
// back; it is then swallowed when force is set or the policy covers d.
func (t *Transaction) run(ctx context.Context, b Backend, d Direction, force bool) error {
	steps := t.Steps
	if d == Rollback {
		steps = slices.Clone(t.Steps)
		slices.Reverse(steps)
	}
	var failed *Step
	err := b.Transaction(ctx, func(ctx context.Context) error {
		for _, s := range steps {
			if err := s.run(ctx, b, d); err != nil {
				failed = s
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.IsDbError(err) && (force || t.IgnoreErrors.covers(d)) {
		hclog.FromContext(ctx).Warn("ignoring error in step", "step", stepId(failed), "direction", d.String(), "error", err)
		return nil
	}
	return err
}

func stepId(s *Step) int {
	if s == nil {
		return -1
	}
	return s.Id
}
