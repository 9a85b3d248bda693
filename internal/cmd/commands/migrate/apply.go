// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*ApplyCommand)(nil)
	_ cli.CommandAutocomplete = (*ApplyCommand)(nil)
)

type ApplyCommand struct {
	*base.Command
	selection
}

func (c *ApplyCommand) Synopsis() string {
	return "Apply migrations to a database"
}

func (c *ApplyCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata apply [options] [source] [database]",
		"",
		"  Apply the migrations that have not yet been applied, in dependency order. Unless -batch is given, each migration is offered for confirmation first:",
		"",
		"    $ strata apply -source ./migrations -database postgresql://app@localhost/app",
		"",
		"  Apply a single migration along with everything it depends on:",
		"",
		"    $ strata apply -revision 20240101_01_x3k9a-create-users",
		"",
	}) + c.Flags().Help()
}

func (c *ApplyCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetSource | base.FlagSetOutputFormat)
	c.addFlags(set, true)
	return set
}

func (c *ApplyCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *ApplyCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *ApplyCommand) Run(args []string) int {
	return runSelected(c.Command, c.Flags(), &c.selection, opApply, args)
}
