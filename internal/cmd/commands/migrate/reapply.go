// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*ReapplyCommand)(nil)
	_ cli.CommandAutocomplete = (*ReapplyCommand)(nil)
)

type ReapplyCommand struct {
	*base.Command
	selection
}

func (c *ReapplyCommand) Synopsis() string {
	return "Roll back and then apply migrations again"
}

func (c *ReapplyCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata reapply [options] [source] [database]",
		"",
		"  Roll back the selected applied migrations, then apply them again in dependency order. This is useful while developing a migration:",
		"",
		"    $ strata reapply -revision x3k9a",
		"",
	}) + c.Flags().Help()
}

func (c *ReapplyCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetSource | base.FlagSetOutputFormat)
	c.addFlags(set, true)
	return set
}

func (c *ReapplyCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *ReapplyCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *ReapplyCommand) Run(args []string) int {
	return runSelected(c.Command, c.Flags(), &c.selection, opReapply, args)
}
