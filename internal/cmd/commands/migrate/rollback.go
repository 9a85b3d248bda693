// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*RollbackCommand)(nil)
	_ cli.CommandAutocomplete = (*RollbackCommand)(nil)
)

type RollbackCommand struct {
	*base.Command
	selection
}

func (c *RollbackCommand) Synopsis() string {
	return "Roll back applied migrations"
}

func (c *RollbackCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata rollback [options] [source] [database]",
		"",
		"  Roll back applied migrations, most recent first. A migration is only rolled back after everything that depends on it.",
		"",
		"    $ strata rollback -source ./migrations -database sqlite:///app.db",
		"",
		"  Roll back one migration and everything that depends on it, without prompting:",
		"",
		"    $ strata rollback -batch -revision x3k9a",
		"",
	}) + c.Flags().Help()
}

func (c *RollbackCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetSource | base.FlagSetOutputFormat)
	c.addFlags(set, true)
	return set
}

func (c *RollbackCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *RollbackCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *RollbackCommand) Run(args []string) int {
	return runSelected(c.Command, c.Flags(), &c.selection, opRollback, args)
}
