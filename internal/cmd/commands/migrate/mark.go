// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*MarkCommand)(nil)
	_ cli.CommandAutocomplete = (*MarkCommand)(nil)
	_ cli.Command             = (*UnmarkCommand)(nil)
	_ cli.CommandAutocomplete = (*UnmarkCommand)(nil)
)

type MarkCommand struct {
	*base.Command
	selection
}

func (c *MarkCommand) Synopsis() string {
	return "Record migrations as applied without running them"
}

func (c *MarkCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata mark [options] [source] [database]",
		"",
		"  Record migrations as applied without running any of their steps. Use this when the changes were made to the database by other means.",
		"",
		"    $ strata mark -revision 20240101_01_x3k9a-create-users",
		"",
		"  With -revision, the migration and everything it depends on are marked.",
		"",
	}) + c.Flags().Help()
}

func (c *MarkCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetSource | base.FlagSetOutputFormat)
	c.addFlags(set, false)
	return set
}

func (c *MarkCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *MarkCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *MarkCommand) Run(args []string) int {
	return runSelected(c.Command, c.Flags(), &c.selection, opMark, args)
}

type UnmarkCommand struct {
	*base.Command
	selection
}

func (c *UnmarkCommand) Synopsis() string {
	return "Remove the applied record of migrations without rolling them back"
}

func (c *UnmarkCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata unmark [options] [source] [database]",
		"",
		"  Remove the record that migrations were applied without running any of their rollback steps.",
		"",
		"    $ strata unmark -revision 20240101_01_x3k9a-create-users",
		"",
		"  With -revision, the migration and everything that depends on it are unmarked.",
		"",
	}) + c.Flags().Help()
}

func (c *UnmarkCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetSource | base.FlagSetOutputFormat)
	c.addFlags(set, false)
	return set
}

func (c *UnmarkCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *UnmarkCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *UnmarkCommand) Run(args []string) int {
	return runSelected(c.Command, c.Flags(), &c.selection, opUnmark, args)
}
