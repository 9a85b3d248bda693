// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/hashicorp/strata/internal/db/schema/source"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*NewCommand)(nil)
	_ cli.CommandAutocomplete = (*NewCommand)(nil)
)

type NewCommand struct {
	*base.Command

	flagMessage string

	// now is replaced in tests.
	now func() time.Time
}

func (c *NewCommand) Synopsis() string {
	return "Create a new migration file"
}

func (c *NewCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata new [options] [source]",
		"",
		"  Create an empty SQL migration in the first source directory. The new migration depends on every migration that nothing else depends on yet:",
		"",
		`    $ strata new -source ./migrations -m "add users table"`,
		"",
	}) + c.Flags().Help()
}

func (c *NewCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetSource)

	f := set.NewFlagSet("Command Options")
	f.StringVar(&base.StringVar{
		Name:       "message",
		Aliases:    []string{"m"},
		Target:     &c.flagMessage,
		Completion: complete.PredictAnything,
		Usage:      "Description of the migration. It is used in the file name and as the first comment of the file.",
	})

	return set
}

func (c *NewCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *NewCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *NewCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return base.CommandUserError
	}
	switch rest := f.Args(); {
	case len(rest) > 1:
		c.UI.Error(fmt.Sprintf("Too many arguments (expected at most 1, got %d)", len(rest)))
		return base.CommandUserError
	case len(rest) == 1 && len(c.FlagSources) == 0:
		c.FlagSources = []string{rest[0]}
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	logger, err := c.SetupLogging(cfg)
	if err != nil {
		c.UI.Error(err.Error())
		return base.CommandUserError
	}
	ctx := hclog.WithContext(c.Context, logger)

	migrations, err := c.ReadMigrations(ctx, cfg)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	heads, err := migrations.Heads(ctx)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	depends := make([]string, 0, len(heads))
	for _, h := range heads {
		depends = append(depends, h.Id())
	}
	slices.Sort(depends)

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	path, err := source.NewMigrationFile(ctx, cfg.Sources[0], c.flagMessage, depends, now())
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	logger.Debug("created migration", "path", path, "depends", depends)

	c.UI.Info(fmt.Sprintf("Created file %s", path))
	return base.CommandSuccess
}
