// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/hashicorp/strata/internal/cmd/commands/migrate"
	"github.com/hashicorp/strata/internal/cmd/commands/version"
	ver "github.com/hashicorp/strata/version"
	"github.com/mitchellh/cli"
)

// Commands is the mapping of all the available commands.
var Commands map[string]cli.CommandFactory

func initCommands(ui cli.Ui) {
	Commands = map[string]cli.CommandFactory{
		"apply": func() (cli.Command, error) {
			return &migrate.ApplyCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"rollback": func() (cli.Command, error) {
			return &migrate.RollbackCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"reapply": func() (cli.Command, error) {
			return &migrate.ReapplyCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"mark": func() (cli.Command, error) {
			return &migrate.MarkCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"unmark": func() (cli.Command, error) {
			return &migrate.UnmarkCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"list": func() (cli.Command, error) {
			return &migrate.ListCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"break-lock": func() (cli.Command, error) {
			return &migrate.BreakLockCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"new": func() (cli.Command, error) {
			return &migrate.NewCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"log": func() (cli.Command, error) {
			return &migrate.LogCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{
				Command: base.NewCommand(ui),
			}, nil
		},
	}
}

func versionString() string {
	return ver.Get().FullVersionNumber(true)
}
