// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/hashicorp/strata/internal/db/schema"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*ListCommand)(nil)
	_ cli.CommandAutocomplete = (*ListCommand)(nil)
)

type ListCommand struct {
	*base.Command

	flagMatch string
}

func (c *ListCommand) Synopsis() string {
	return "List migrations and whether each is applied"
}

func (c *ListCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: strata list [options] [source] [database]",
		"",
		"  List the migrations in dependency order. Applied migrations are marked \"A\" and unapplied ones \"U\":",
		"",
		"    $ strata list -source ./migrations -database sqlite:///app.db",
		"",
		"  If another process holds the migration lock, its pid and how long it has held the lock are shown.",
		"",
	}) + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetDatabase | base.FlagSetSource | base.FlagSetOutputFormat)

	f := set.NewFlagSet("Command Options")
	f.StringVar(&base.StringVar{
		Name:       "match",
		Aliases:    []string{"m"},
		Target:     &c.flagMatch,
		Completion: complete.PredictAnything,
		Usage:      "List only migrations whose id matches this regular expression.",
	})

	return set
}

func (c *ListCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictDirs("*")
}

func (c *ListCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

type listItem struct {
	Id        string     `json:"id"`
	Source    string     `json:"source"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	PostApply bool       `json:"post_apply,omitempty"`
}

type lockItem struct {
	Held  bool       `json:"held"`
	Pid   int        `json:"pid,omitempty"`
	Since *time.Time `json:"since,omitempty"`
}

func (c *ListCommand) Run(args []string) int {
	ctx, s, code := open(c.Command, c.Flags(), args, true)
	if code != base.CommandSuccess {
		return code
	}
	defer func() {
		if err := s.manager.Close(); err != nil {
			s.logger.Error("closing database", "error", err)
		}
	}()

	var re *regexp.Regexp
	if c.flagMatch != "" {
		var err error
		if re, err = regexp.Compile(c.flagMatch); err != nil {
			c.UI.Error(fmt.Sprintf("Invalid -match pattern: %s", err))
			return base.CommandUserError
		}
	}

	sorted, err := s.migrations.Sorted(ctx)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	statuses, err := s.manager.Status(ctx, sorted)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}
	lock, err := s.manager.LockState(ctx)
	if err != nil {
		c.PrintCliError(err)
		return base.ExitCode(err)
	}

	items := make([]listItem, 0, len(statuses))
	for _, st := range statuses {
		if re != nil && !re.MatchString(st.Migration.Id()) {
			continue
		}
		items = append(items, listItemOf(st))
	}
	for _, mg := range s.migrations.PostApply() {
		if re != nil && !re.MatchString(mg.Id()) {
			continue
		}
		items = append(items, listItem{Id: mg.Id(), Source: mg.Source(), PostApply: true})
	}

	if base.Format(c.UI) == "json" {
		out := struct {
			Migrations []listItem `json:"migrations"`
			Lock       lockItem   `json:"lock"`
		}{Migrations: items, Lock: lockItem{Held: lock.Held}}
		if lock.Held {
			since := lock.Since
			out.Lock.Pid, out.Lock.Since = lock.Pid, &since
		}
		if !c.PrintJson(out) {
			return base.CommandError
		}
		return base.CommandSuccess
	}

	c.UI.Output(c.printTable(items, lock))
	return base.CommandSuccess
}

func listItemOf(st schema.Status) listItem {
	item := listItem{Id: st.Migration.Id(), Source: st.Migration.Source(), Applied: st.Applied}
	if st.Applied {
		at := st.AppliedAt
		item.AppliedAt = &at
	}
	return item
}

func (c *ListCommand) printTable(items []listItem, lock schema.LockState) string {
	if len(items) == 0 {
		return "No migrations found"
	}

	applied := color.New(color.FgGreen).SprintFunc()
	unapplied := color.New(color.FgYellow).SprintFunc()

	idWidth := len("ID")
	for _, item := range items {
		idWidth = max(idWidth, len(item.Id))
	}

	var out []string
	out = append(out, fmt.Sprintf("  %-6s  %-*s  %s", "STATUS", idWidth, "ID", "APPLIED AT"))
	for _, item := range items {
		status, at := unapplied("U"), ""
		switch {
		case item.PostApply:
			status = "P"
		case item.Applied:
			status = applied("A")
			at = item.AppliedAt.Local().Format(time.DateTime)
		}
		out = append(out, strings.TrimRight(fmt.Sprintf("  %s       %-*s  %s", status, idWidth, item.Id, at), " "))
	}

	if lock.Held {
		out = append(out, "", fmt.Sprintf("The migration lock is held by pid %d (for %s).",
			lock.Pid, base.HumanDuration(time.Since(lock.Since).Truncate(time.Second))))
	}
	return strings.Join(out, "\n")
}
