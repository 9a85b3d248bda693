// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

// Package migrate holds the commands that select migrations and run them
// against a database.
package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/hashicorp/strata/internal/cmd/config"
	"github.com/hashicorp/strata/internal/db/schema"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
	"github.com/posener/complete"
)

// operation is what a selecting command does with the migrations chosen.
type operation int

const (
	opApply operation = iota
	opRollback
	opReapply
	opMark
	opUnmark
)

func (o operation) String() string {
	return [...]string{"apply", "rollback", "reapply", "mark", "unmark"}[o]
}

// past is the verb used when reporting a finished operation.
func (o operation) past() string {
	return [...]string{"Applied", "Rolled back", "Reapplied", "Marked", "Unmarked"}[o]
}

// direction is the way the operation moves the applied state.  Selection
// and prompt defaults follow it.
func (o operation) direction() migration.Direction {
	switch o {
	case opRollback, opReapply, opUnmark:
		return migration.Rollback
	default:
		return migration.Apply
	}
}

// selection holds the flags shared by the commands that pick migrations.
type selection struct {
	flagMatch    string
	flagRevision string
	flagAll      bool
	flagForce    bool
}

func (s *selection) addFlags(set *base.FlagSets, withForce bool) {
	f := set.NewFlagSet("Selection Options")

	f.StringVar(&base.StringVar{
		Name:       "match",
		Aliases:    []string{"m"},
		Target:     &s.flagMatch,
		Completion: complete.PredictAnything,
		Usage:      "Select only migrations whose id matches this regular expression.",
	})

	f.StringVar(&base.StringVar{
		Name:       "revision",
		Aliases:    []string{"r"},
		Target:     &s.flagRevision,
		Completion: complete.PredictAnything,
		Usage: "Target a single migration by id or unique part of an id. Applying selects it and everything it depends on; " +
			"rolling back selects it and everything that depends on it.",
	})

	f.BoolVar(&base.BoolVar{
		Name:    "all",
		Aliases: []string{"a"},
		Target:  &s.flagAll,
		Usage:   "Select all migrations, regardless of whether they have been previously applied.",
	})

	if withForce {
		f.BoolVar(&base.BoolVar{
			Name:    "force",
			Aliases: []string{"f"},
			Target:  &s.flagForce,
			Usage:   "Keep running the steps of a migration after one of them fails with a database error.",
		})
	}
}

// session is an open database with the configuration and migrations a
// command works on.
type session struct {
	cfg        *config.Config
	logger     hclog.Logger
	manager    *schema.Manager
	uri        string
	migrations *migration.Collection
}

// positionalArgs accepts "[source] [database]" after the flags.
func positionalArgs(c *base.Command, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("Too many arguments (expected at most 2, got %d)", len(args))
	}
	if len(args) > 0 && len(c.FlagSources) == 0 {
		c.FlagSources = strings.Fields(args[0])
	}
	if len(args) > 1 && c.FlagDatabase == "" {
		c.FlagDatabase = args[1]
	}
	return nil
}

// open parses the flags and sets up the session.  A non-zero return is the
// exit code to stop with.
func open(c *base.Command, set *base.FlagSets, args []string, withMigrations bool) (context.Context, *session, int) {
	if err := set.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return nil, nil, base.CommandUserError
	}
	if err := positionalArgs(c, set.Args()); err != nil {
		c.UI.Error(err.Error())
		return nil, nil, base.CommandUserError
	}

	s := &session{}
	var err error
	if s.cfg, err = c.LoadConfig(); err != nil {
		c.PrintCliError(err)
		return nil, nil, base.ExitCode(err)
	}
	if s.logger, err = c.SetupLogging(s.cfg); err != nil {
		c.UI.Error(err.Error())
		return nil, nil, base.CommandUserError
	}
	ctx := hclog.WithContext(c.Context, s.logger)

	if withMigrations {
		if s.migrations, err = c.ReadMigrations(ctx, s.cfg); err != nil {
			c.PrintCliError(err)
			return nil, nil, base.ExitCode(err)
		}
	}
	if s.manager, s.uri, err = c.OpenManager(ctx, s.cfg, s.logger); err != nil {
		c.PrintCliError(err)
		return nil, nil, base.ExitCode(err)
	}
	return ctx, s, base.CommandSuccess
}

// selectMigrations narrows the session's migrations to those op should run,
// in the order it should run them.
func (s *session) selectMigrations(ctx context.Context, sel *selection, op operation) (*migration.Collection, error) {
	const op2 = "migrate.selectMigrations"
	c := s.migrations
	if sel.flagMatch != "" {
		re, err := regexp.Compile(sel.flagMatch)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op2, errors.WithCode(errors.InvalidParameter), errors.WithMsg("invalid -match pattern"))
		}
		c = c.Filter(func(mg *migration.Migration) bool { return re.MatchString(mg.Id()) })
	}

	if sel.flagRevision != "" {
		target, err := findRevision(ctx, c, sel.flagRevision)
		if err != nil {
			return nil, err
		}
		if op.direction() == migration.Apply {
			c, err = c.WithAncestors(ctx, target.Id())
		} else {
			c, err = c.WithDescendants(ctx, target.Id())
		}
		if err != nil {
			return nil, errors.Wrap(ctx, err, op2)
		}
	}

	var err error
	switch {
	case sel.flagAll && op.direction() == migration.Apply:
		c, err = c.Sorted(ctx)
	case sel.flagAll:
		c, err = c.Sorted(ctx)
		if err == nil {
			c = c.Reversed()
		}
	case op.direction() == migration.Apply:
		c, err = s.manager.ToApply(ctx, c)
	default:
		c, err = s.manager.ToRollback(ctx, c)
	}
	if err != nil {
		return nil, errors.Wrap(ctx, err, op2)
	}
	return c, nil
}

// findRevision returns the migration whose id is rev, or failing that the
// only migration whose id contains rev.
func findRevision(ctx context.Context, c *migration.Collection, rev string) (*migration.Migration, error) {
	const op = "migrate.findRevision"
	if mg, ok := c.Get(rev); ok {
		return mg, nil
	}
	var found []string
	for _, mg := range c.All() {
		if strings.Contains(mg.Id(), rev) {
			found = append(found, mg.Id())
		}
	}
	switch len(found) {
	case 0:
		return nil, errors.New(ctx, errors.InvalidParameter, op, fmt.Sprintf("%q doesn't match any revisions", rev))
	case 1:
		mg, _ := c.Get(found[0])
		return mg, nil
	default:
		return nil, errors.New(ctx, errors.InvalidParameter, op, fmt.Sprintf("%q matches multiple revisions; please specify one of %s", rev, strings.Join(found, ", ")))
	}
}

// runSelected is the body of the apply, rollback, reapply, mark and unmark
// commands.
func runSelected(c *base.Command, set *base.FlagSets, sel *selection, op operation, args []string) int {
	ctx, s, code := open(c, set, args, true)
	if code != base.CommandSuccess {
		return code
	}
	defer func() {
		if err := s.manager.Close(); err != nil {
			s.logger.Error("closing database", "error", err)
		}
	}()

	// Held from selection to the end of the run so no other process can
	// change what was selected.
	if err := s.manager.Lock(ctx); err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	defer func() {
		if err := s.manager.Unlock(ctx); err != nil {
			s.logger.Error("releasing migration lock", "error", err)
		}
	}()

	chosen, err := s.selectMigrations(ctx, sel, op)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}

	if !s.cfg.BatchMode && chosen.Len() > 0 {
		applied, err := s.manager.Applied(ctx)
		if err != nil {
			c.PrintCliError(err)
			return base.ExitCode(err)
		}
		isApplied := make(map[string]bool, len(applied))
		for id := range applied {
			isApplied[id] = true
		}
		chosen, err = promptMigrations(ctx, c.UI, chosen, isApplied, op.String(), op.direction())
		switch {
		case errors.Is(err, errQuit):
			c.UI.Info(errQuit.Error())
			return base.CommandSuccess
		case err != nil:
			c.PrintCliError(err)
			return base.CommandUserError
		}
		if chosen.Len() > 0 {
			ok, err := confirm(c.UI, fmt.Sprintf("%s %s to %s?", titleCase(op.String()), plural(chosen.Len()), s.uri))
			if err != nil {
				c.PrintCliError(err)
				return base.CommandUserError
			}
			if !ok {
				return base.CommandSuccess
			}
		}
	}

	if chosen.Len() == 0 {
		c.UI.Info(fmt.Sprintf("No migrations to %s", op))
		return base.CommandSuccess
	}

	var opts []schema.Option
	if sel.flagForce {
		opts = append(opts, schema.WithForce(true))
	}
	switch op {
	case opApply:
		err = s.manager.ApplyMigrations(ctx, chosen, opts...)
	case opRollback:
		err = s.manager.RollbackMigrations(ctx, chosen, opts...)
	case opReapply:
		err = s.manager.ReapplyMigrations(ctx, chosen, opts...)
	case opMark:
		err = s.manager.MarkMigrations(ctx, chosen)
	case opUnmark:
		err = s.manager.UnmarkMigrations(ctx, chosen)
	}
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}

	if base.Format(c.UI) == "json" {
		if !c.PrintJson(struct {
			Operation  string   `json:"operation"`
			Migrations []string `json:"migrations"`
		}{op.String(), chosen.Ids()}) {
			return base.CommandError
		}
		return base.CommandSuccess
	}
	c.UI.Info(fmt.Sprintf("%s %s", op.past(), plural(chosen.Len())))
	return base.CommandSuccess
}

func plural(n int) string {
	if n == 1 {
		return "1 migration"
	}
	return fmt.Sprintf("%d migrations", n)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
