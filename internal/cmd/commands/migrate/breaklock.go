// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"fmt"
	"time"

	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*BreakLockCommand)(nil)
	_ cli.CommandAutocomplete = (*BreakLockCommand)(nil)
)

type BreakLockCommand struct {
	*base.Command
}

func (c *BreakLockCommand) Synopsis() string {
	return "Remove a migration lock left by a dead process"
}

func (c *BreakLockCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata break-lock [options] [database]",
		"",
		"  Remove the migration lock regardless of which process holds it. Only do this when the process holding the lock is known to have died, otherwise two processes may migrate the same database at once.",
		"",
		"    $ strata break-lock -database postgresql://app@localhost/app",
		"",
	}) + c.Flags().Help()
}

func (c *BreakLockCommand) Flags() *base.FlagSets {
	return c.FlagSet(base.FlagSetDatabase)
}

func (c *BreakLockCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *BreakLockCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *BreakLockCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return base.CommandUserError
	}
	// The database is the only positional argument here.
	rest := f.Args()
	switch {
	case len(rest) > 1:
		c.UI.Error(fmt.Sprintf("Too many arguments (expected at most 1, got %d)", len(rest)))
		return base.CommandUserError
	case len(rest) == 1 && c.FlagDatabase == "":
		c.FlagDatabase = rest[0]
	}

	ctx, s, code := open(c.Command, f, nil, false)
	if code != base.CommandSuccess {
		return code
	}
	defer func() {
		if err := s.manager.Close(); err != nil {
			s.logger.Error("closing database", "error", err)
		}
	}()

	st, err := s.manager.LockState(ctx)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	if !st.Held {
		c.UI.Info("The migration lock is not held")
		return base.CommandSuccess
	}

	if !s.cfg.BatchMode {
		ok, err := confirm(c.UI, fmt.Sprintf("Break the lock held by pid %d for %s on %s?",
			st.Pid, base.HumanDuration(time.Since(st.Since).Truncate(time.Second)), s.uri))
		if err != nil {
			c.PrintCliError(err)
			return base.CommandUserError
		}
		if !ok {
			return base.CommandSuccess
		}
	}

	if err := s.manager.BreakLock(ctx); err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	c.UI.Info(fmt.Sprintf("Broke the migration lock held by pid %d", st.Pid))
	return base.CommandSuccess
}
