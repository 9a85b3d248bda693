// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/hashicorp/strata/internal/db/schema"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*LogCommand)(nil)
	_ cli.CommandAutocomplete = (*LogCommand)(nil)
)

type LogCommand struct {
	*base.Command

	flagMigration string
	flagLimit     int
	flagDelete    bool
}

func (c *LogCommand) Synopsis() string {
	return "Show the history of migration operations"
}

func (c *LogCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata log [options] [database]",
		"",
		"  Show each apply, rollback, mark and unmark recorded in the migration log, oldest first, with the user and host that ran it:",
		"",
		"    $ strata log -database sqlite:///app.db -limit 20",
		"",
	}) + c.Flags().Help()
}

func (c *LogCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetOutputFormat)

	f := set.NewFlagSet("Command Options")
	f.StringVar(&base.StringVar{
		Name:       "migration",
		Target:     &c.flagMigration,
		Completion: complete.PredictAnything,
		Usage:      "Show only entries for the migration with this id.",
	})
	f.IntVar(&base.IntVar{
		Name:   "limit",
		Target: &c.flagLimit,
		Usage:  "Show at most this many entries. Zero shows all of them.",
	})
	f.BoolVar(&base.BoolVar{
		Name:   "delete",
		Target: &c.flagDelete,
		Usage:  "Delete the entries shown from the log.",
	})

	return set
}

func (c *LogCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *LogCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

type logItem struct {
	Id          string    `json:"id"`
	MigrationId string    `json:"migration_id"`
	Operation   string    `json:"operation"`
	Username    string    `json:"username"`
	Hostname    string    `json:"hostname"`
	CreateTime  time.Time `json:"create_time"`
}

func (c *LogCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return base.CommandUserError
	}
	rest := f.Args()
	switch {
	case len(rest) > 1:
		c.UI.Error(fmt.Sprintf("Too many arguments (expected at most 1, got %d)", len(rest)))
		return base.CommandUserError
	case len(rest) == 1 && c.FlagDatabase == "":
		c.FlagDatabase = rest[0]
	}
	if c.flagLimit < 0 {
		c.UI.Error("-limit must not be negative")
		return base.CommandUserError
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

	var opts []schema.Option
	if c.flagMigration != "" {
		opts = append(opts, schema.WithMigrationId(c.flagMigration))
	}
	if c.flagLimit > 0 {
		opts = append(opts, schema.WithLimit(c.flagLimit))
	}
	if c.flagDelete {
		opts = append(opts, schema.WithDeleteLog(true))
	}
	entries, err := s.manager.GetMigrationLog(ctx, opts...)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}

	if base.Format(c.UI) == "json" {
		items := make([]logItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, logItem(e))
		}
		if !c.PrintJson(items) {
			return base.CommandError
		}
		return base.CommandSuccess
	}

	if len(entries) == 0 {
		c.UI.Info("No log entries found")
		return base.CommandSuccess
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s  %-9s %s  (%s@%s)",
			e.CreateTime.Local().Format(time.DateTime), e.Operation, e.MigrationId, e.Username, e.Hostname))
	}
	c.UI.Output(strings.Join(lines, "\n"))
	if c.flagDelete {
		c.UI.Info(fmt.Sprintf("Deleted %d log entries", len(entries)))
	}
	return base.CommandSuccess
}
