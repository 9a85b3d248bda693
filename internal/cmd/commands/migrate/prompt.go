// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/strata/internal/cmd/base"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/mitchellh/cli"
)

// errQuit is returned when the user cancels at a prompt.
var errQuit = errors.New("cancelled without making any changes")

const promptOptions = "ynvdaqjk?"

type choice struct {
	mg     *migration.Migration
	choice byte
}

// promptMigrations walks c asking whether to run each migration in the given
// direction and returns the chosen ones in order.  A migration's default is
// to run it when that would change its applied state.
func promptMigrations(ctx context.Context, ui cli.Ui, c *migration.Collection, applied map[string]bool, verb string, d migration.Direction) (*migration.Collection, error) {
	choices := make([]*choice, 0, c.Len())
	for _, mg := range c.All() {
		choices = append(choices, &choice{mg: mg})
	}

	for pos := 0; pos < len(choices); {
		ch := choices[pos]
		def := ch.choice
		if def == 0 {
			def = 'y'
			if applied[ch.mg.Id()] == (d == migration.Apply) {
				def = 'n'
			}
		}

		ui.Output("")
		ui.Output(fmt.Sprintf("[%s]", ch.mg.Id()))
		resp, err := ask(ui, fmt.Sprintf("Shall I %s this migration?", verb), promptOptions, def)
		if err != nil {
			return nil, err
		}

		switch resp {
		case '?':
			ui.Output(promptHelp(verb))
		case 'y', 'n':
			ch.choice = resp
			pos++
		case 'v':
			ui.Output(base.Indent(viewMigration(ctx, ch.mg), 4))
		case 'j':
			pos = min(len(choices), pos+1)
		case 'k':
			pos = max(0, pos-1)
		case 'd':
			pos = len(choices)
		case 'a':
			for _, rest := range choices[pos:] {
				rest.choice = 'y'
			}
			pos = len(choices)
		case 'q':
			return nil, errQuit
		}
	}

	return c.Filter(func(mg *migration.Migration) bool {
		for _, ch := range choices {
			if ch.mg == mg {
				return ch.choice == 'y'
			}
		}
		return false
	}), nil
}

// ask prompts until the response is one of options.  An empty response is
// def.  The options are shown with the default in upper case.
func ask(ui cli.Ui, question, options string, def byte) (byte, error) {
	var shown strings.Builder
	for i := 0; i < len(options); i++ {
		o := options[i]
		if o == def {
			shown.WriteString(strings.ToUpper(string(o)))
			continue
		}
		shown.WriteByte(o)
	}
	for {
		resp, err := ui.Ask(fmt.Sprintf("%s [%s]:", question, shown.String()))
		if err != nil {
			return 0, err
		}
		resp = strings.ToLower(strings.TrimSpace(resp))
		if resp == "" {
			return def, nil
		}
		if len(resp) == 1 && strings.Contains(options, resp) {
			return resp[0], nil
		}
		ui.Output(fmt.Sprintf("Please answer one of %s", strings.Join(strings.Split(options, ""), ", ")))
	}
}

// confirm asks a yes or no question defaulting to yes.
func confirm(ui cli.Ui, question string) (bool, error) {
	resp, err := ask(ui, question, "yn", 'y')
	if err != nil {
		return false, err
	}
	return resp == 'y', nil
}

func promptHelp(verb string) string {
	return strings.Join([]string{
		"",
		fmt.Sprintf("y: %s this migration", verb),
		fmt.Sprintf("n: don't %s it", verb),
		"",
		"v: view this migration in full",
		"",
		fmt.Sprintf("d: %s the selected migrations, skipping any remaining", verb),
		fmt.Sprintf("a: %s all the remaining migrations", verb),
		"q: cancel without making any changes",
		"",
		"j: skip to next migration",
		"k: back up to previous migration",
		"",
		"?: show this help",
	}, "\n")
}

// viewMigration returns the source file of mg, or a listing of its steps
// when it was not read from a file.
func viewMigration(ctx context.Context, mg *migration.Migration) string {
	if body, err := os.ReadFile(mg.Source()); err == nil {
		return string(body)
	}
	groups, err := mg.Steps(ctx)
	if err != nil {
		return fmt.Sprintf("unable to load %s: %v", mg.Id(), err)
	}
	var out strings.Builder
	for i, g := range groups {
		fmt.Fprintf(&out, "transaction %d", i+1)
		if g.IgnoreErrors != migration.IgnoreNone {
			fmt.Fprintf(&out, " (ignore errors: %s)", g.IgnoreErrors)
		}
		out.WriteString("\n")
		for _, s := range g.Steps {
			fmt.Fprintf(&out, "  apply:    %v\n", s.Apply)
			fmt.Fprintf(&out, "  rollback: %v\n", s.Rollback)
		}
	}
	return strings.TrimRight(out.String(), "\n")
}
