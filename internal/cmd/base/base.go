// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

// reRemoveWhitespace is a regular expression for stripping whitespace from
// a string.
var reRemoveWhitespace = regexp.MustCompile(`[\s]+`)

type Command struct {
	Context    context.Context
	UI         cli.Ui
	ShutdownCh chan struct{}

	flags     *FlagSets
	flagsOnce sync.Once

	FlagConfig         string
	FlagDatabase       string
	FlagSources        []string
	FlagMigrationTable string
	FlagLockTable      string
	FlagLogTable       string
	FlagLockTimeout    time.Duration
	FlagPromptPassword bool

	FlagBatch bool

	flagLogLevel  string
	flagLogFormat string
	flagVerbose   int

	flagFormat string
}

// New returns a new instance of a base.Command type
func NewCommand(ui cli.Ui) *Command {
	ctx, cancel := context.WithCancel(context.Background())
	ret := &Command{
		UI:         ui,
		ShutdownCh: MakeShutdownCh(),
		Context:    ctx,
	}

	go func() {
		<-ret.ShutdownCh
		cancel()
	}()

	return ret
}

// MakeShutdownCh returns a channel that can be used for shutdown
// notifications for commands. This channel will send a message for every
// SIGINT or SIGTERM received.
func MakeShutdownCh() chan struct{} {
	resultCh := make(chan struct{})

	shutdownCh := make(chan os.Signal, 4)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		close(resultCh)
	}()
	return resultCh
}

type FlagSetBit uint

const (
	FlagSetNone FlagSetBit = 1 << iota
	FlagSetDatabase
	FlagSetSource
	FlagSetLogging
	FlagSetOutputFormat
)

// FlagSet creates the flags for this command. The result is cached on the
// command to save performance on future calls.
func (c *Command) FlagSet(bit FlagSetBit) *FlagSets {
	c.flagsOnce.Do(func() {
		set := NewFlagSets(c.UI)

		// Every command can be pointed at a config file and log.
		bit = bit | FlagSetLogging

		if bit&(FlagSetDatabase|FlagSetSource) != 0 {
			f := set.NewFlagSet("Connection Options")

			f.StringVar(&StringVar{
				Name:    FlagNameConfig,
				Aliases: []string{"c"},
				Target:  &c.FlagConfig,
				EnvVar:  EnvStrataConfig,
				Completion: complete.PredictOr(
					complete.PredictFiles("*.hcl"),
					complete.PredictFiles("*.json"),
				),
				Usage: `Path to the configuration file. If not set, the nearest "strata.hcl" in the working directory or one of its parents is used.`,
			})

			f.StringSliceVar(&StringSliceVar{
				Name:       FlagNameSource,
				Target:     &c.FlagSources,
				Completion: complete.PredictDirs("*"),
				Usage:      "Directory of migration files. May be specified multiple times; migrations are read from each in order.",
			})

			if bit&FlagSetDatabase != 0 {
				f.StringVar(&StringVar{
					Name:       FlagNameDatabase,
					Aliases:    []string{"d"},
					Target:     &c.FlagDatabase,
					Completion: complete.PredictAnything,
					Usage: `Database connection uri, such as "postgresql://user@host/db", "mysql://user@host/db" or "sqlite:///path/to/file.db". ` +
						`This can refer to a file on disk (file://) from which the uri will be read, or an env var (env://) from which the uri will be read.`,
				})

				f.BoolVar(&BoolVar{
					Name:   "prompt-password",
					Target: &c.FlagPromptPassword,
					Usage:  "Prompt for the database password instead of reading it from the connection uri.",
				})

				f.StringVar(&StringVar{
					Name:   "migration-table",
					Target: &c.FlagMigrationTable,
					Usage:  "Name of the table recording applied migrations.",
				})

				f.StringVar(&StringVar{
					Name:   "lock-table",
					Target: &c.FlagLockTable,
					Usage:  "Name of the table holding the migration lock.",
				})

				f.StringVar(&StringVar{
					Name:   "log-table",
					Target: &c.FlagLogTable,
					Usage:  "Name of the table recording each migration operation.",
				})

				f.DurationVar(&DurationVar{
					Name:       "lock-timeout",
					Target:     &c.FlagLockTimeout,
					Completion: complete.PredictAnything,
					Usage:      "How long to wait for another process to release the migration lock. Bare numbers are seconds.",
				})

				f.BoolVar(&BoolVar{
					Name:    FlagNameBatch,
					Aliases: []string{"b"},
					Target:  &c.FlagBatch,
					Usage:   "Run in batch mode, turning off all prompts.",
				})
			}
		}

		if bit&FlagSetLogging != 0 {
			f := set.NewFlagSet("Log Options")

			f.StringVar(&StringVar{
				Name:       "log-level",
				Target:     &c.flagLogLevel,
				EnvVar:     EnvStrataLogLevel,
				Completion: complete.PredictSet("trace", "debug", "info", "warn", "err"),
				Usage: "Log verbosity level. Supported values (in order of more detail to less) are " +
					"\"trace\", \"debug\", \"info\", \"warn\", and \"err\".",
			})

			f.StringVar(&StringVar{
				Name:       "log-format",
				Target:     &c.flagLogFormat,
				Completion: complete.PredictSet("standard", "json"),
				Usage:      `Log format. Supported values are "standard" and "json".`,
			})

			f.CountVar(&CountVar{
				Name:   "v",
				Target: &c.flagVerbose,
				Usage:  "Verbose output. Each use raises the log level by one step.",
			})
		}

		if bit&FlagSetOutputFormat != 0 {
			f := set.NewFlagSet("Output Options")

			f.StringVar(&StringVar{
				Name:       "format",
				Target:     &c.flagFormat,
				Default:    "table",
				EnvVar:     EnvStrataCLIFormat,
				Completion: complete.PredictSet("table", "json"),
				Usage: "Print the output in the given format. Valid formats " +
					"are \"table\" or \"json\".",
			})
		}

		c.flags = set
	})

	return c.flags
}

// FlagSets is a group of flag sets.
type FlagSets struct {
	flagSets    []*FlagSet
	mainSet     *flag.FlagSet
	hiddens     map[string]struct{}
	completions complete.Flags
}

// NewFlagSets creates a new flag sets.
func NewFlagSets(ui cli.Ui) *FlagSets {
	mainSet := flag.NewFlagSet("", flag.ContinueOnError)

	// Errors and usage are controlled by the CLI.
	mainSet.Usage = func() {}
	mainSet.SetOutput(io.Discard)

	return &FlagSets{
		flagSets:    make([]*FlagSet, 0, 6),
		mainSet:     mainSet,
		hiddens:     make(map[string]struct{}),
		completions: complete.Flags{},
	}
}

// NewFlagSet creates a new flag set from the given flag sets.
func (f *FlagSets) NewFlagSet(name string) *FlagSet {
	flagSet := NewFlagSet(name)
	flagSet.mainSet = f.mainSet
	flagSet.completions = f.completions
	f.flagSets = append(f.flagSets, flagSet)
	return flagSet
}

// Completions returns the completions for this flag set.
func (f *FlagSets) Completions() complete.Flags {
	return f.completions
}

// Parse parses the given flags, returning any errors.
func (f *FlagSets) Parse(args []string) error {
	return f.mainSet.Parse(args)
}

// Parsed reports whether the command-line flags have been parsed.
func (f *FlagSets) Parsed() bool {
	return f.mainSet.Parsed()
}

// Args returns the remaining args after parsing.
func (f *FlagSets) Args() []string {
	return f.mainSet.Args()
}

// Visit visits the flags in lexicographical order, calling fn for each. It
// visits only those flags that have been set.
func (f *FlagSets) Visit(fn func(*flag.Flag)) {
	f.mainSet.Visit(fn)
}

// IsSet reports whether the named flag was given on the command line.
func (f *FlagSets) IsSet(name string) bool {
	found := false
	f.mainSet.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Help builds custom help for this command, grouping by flag set.
func (fs *FlagSets) Help() string {
	var out bytes.Buffer

	for _, set := range fs.flagSets {
		printFlagTitle(&out, set.name+":")
		set.VisitAll(func(f *flag.Flag) {
			// Skip any hidden flags
			if v, ok := f.Value.(FlagVisibility); ok && v.Hidden() {
				return
			}
			printFlagDetail(&out, f)
		})
	}

	return strings.TrimRight(out.String(), "\n")
}

// FlagSet is a grouped wrapper around a real flag set and a grouped flag set.
type FlagSet struct {
	name        string
	flagSet     *flag.FlagSet
	mainSet     *flag.FlagSet
	completions complete.Flags
}

// NewFlagSet creates a new flag set.
func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:    name,
		flagSet: flag.NewFlagSet(name, flag.ContinueOnError),
	}
}

// Name returns the name of this flag set.
func (f *FlagSet) Name() string {
	return f.name
}

func (f *FlagSet) Visit(fn func(*flag.Flag)) {
	f.flagSet.Visit(fn)
}

func (f *FlagSet) VisitAll(fn func(*flag.Flag)) {
	f.flagSet.VisitAll(fn)
}

// printFlagTitle prints a consistently-formatted title to the given writer.
func printFlagTitle(w io.Writer, s string) {
	fmt.Fprintf(w, "%s\n\n", s)
}

// printFlagDetail prints a single flag to the given writer.
func printFlagDetail(w io.Writer, f *flag.Flag) {
	// Check if the flag is hidden - do not print any flag detail or help output
	// if it is hidden.
	if h, ok := f.Value.(FlagVisibility); ok && h.Hidden() {
		return
	}

	// Check for a detailed example
	example := ""
	if t, ok := f.Value.(FlagExample); ok {
		example = t.Example()
	}

	if example != "" {
		fmt.Fprintf(w, "  -%s=<%s>\n", f.Name, example)
	} else {
		fmt.Fprintf(w, "  -%s\n", f.Name)
	}

	usage := reRemoveWhitespace.ReplaceAllString(f.Usage, " ")
	indented := WrapAtLengthWithPadding(usage, 6)
	fmt.Fprintf(w, "%s\n\n", indented)
}
