// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/strata/internal/cmd/config"
	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/db/schema"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/db/schema/source"
	"github.com/hashicorp/strata/internal/errors"
)

// LoadConfig reads the configuration file and environment, then applies the
// flags given on the command line over them.
func (c *Command) LoadConfig() (*config.Config, error) {
	const op = "base.(Command).LoadConfig"
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(c.Context, err, op, errors.WithCode(errors.Io))
	}
	cfg, err := config.Load(c.FlagConfig, wd)
	if err != nil {
		return nil, errors.Wrap(c.Context, err, op, errors.WithCode(errors.InvalidConfiguration))
	}

	if c.FlagDatabase != "" {
		cfg.Database.Url = c.FlagDatabase
	}
	if len(c.FlagSources) > 0 {
		cfg.Sources = c.FlagSources
	}
	if c.FlagMigrationTable != "" {
		cfg.Database.MigrationTable = c.FlagMigrationTable
	}
	if c.FlagLockTable != "" {
		cfg.Database.LockTable = c.FlagLockTable
	}
	if c.FlagLogTable != "" {
		cfg.Database.LogTable = c.FlagLogTable
	}
	if c.FlagLockTimeout > 0 {
		cfg.Database.LockTimeout = c.FlagLockTimeout
	}
	if c.FlagBatch {
		cfg.BatchMode = true
	}

	// Each source directory is read once.
	var sources []string
	for _, s := range cfg.Sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = strutil.AppendIfMissing(sources, s)
		}
	}
	cfg.Sources = sources
	return cfg, nil
}

// SetupLogging builds the command logger from the log flags and config.  Log
// lines go to the UI's error stream.
func (c *Command) SetupLogging(cfg *config.Config) (hclog.Logger, error) {
	level, format, err := ProcessLogLevelAndFormat(c.flagLogLevel, c.flagLogFormat, cfg.LogLevel, cfg.LogFormat, c.flagVerbose)
	if err != nil {
		return nil, err
	}
	return NewLogger(&UiWriter{Ui: c.UI}, level, format), nil
}

// OpenManager connects to the configured database.  With -prompt-password
// the password is asked for before connecting.  The returned string is the
// connection uri with its password masked.
func (c *Command) OpenManager(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*schema.Manager, string, error) {
	const op = "base.(Command).OpenManager"
	raw, err := cfg.DatabaseUrl()
	if err != nil {
		return nil, "", errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidConfiguration))
	}
	if raw == "" {
		return nil, "", errors.New(ctx, errors.InvalidConfiguration, op, `no database given; use -database or set "url" in the "database" config block`)
	}
	u, err := common.ParseUri(raw)
	if err != nil {
		return nil, "", errors.Wrap(ctx, err, op)
	}

	if c.FlagPromptPassword {
		pw, err := c.UI.AskSecret(fmt.Sprintf("Password for %s:", u.Redacted()))
		if err != nil {
			return nil, "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
		}
		if raw, err = withPassword(raw, pw); err != nil {
			return nil, "", errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidParameter))
		}
	}

	opts := []schema.Option{
		schema.WithLogger(logger),
		schema.WithMigrationTable(cfg.Database.MigrationTable),
		schema.WithLockTable(cfg.Database.LockTable),
		schema.WithLogTable(cfg.Database.LogTable),
	}
	if cfg.Database.LockTimeout > 0 {
		opts = append(opts, schema.WithLockTimeout(cfg.Database.LockTimeout))
	}
	m, err := schema.Open(ctx, raw, opts...)
	if err != nil {
		return nil, "", errors.Wrap(ctx, err, op)
	}
	return m, u.Redacted(), nil
}

// ReadMigrations reads the migrations of every configured source directory.
func (c *Command) ReadMigrations(ctx context.Context, cfg *config.Config) (*migration.Collection, error) {
	const op = "base.(Command).ReadMigrations"
	if len(cfg.Sources) == 0 {
		return nil, errors.New(ctx, errors.InvalidConfiguration, op, `no migration sources given; use -source or set "sources" in the config file`)
	}
	sources := make([]source.Source, 0, len(cfg.Sources))
	for _, dir := range cfg.Sources {
		sources = append(sources, source.NewDir(dir))
	}
	migrations, err := source.Read(ctx, sources)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return migrations, nil
}

func withPassword(raw, password string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	username := ""
	if u.User != nil {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}

// ExitCode maps an error from the migration packages to a command exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return CommandSuccess
	case errors.IsLockTimeout(err):
		return CommandLockError
	case errors.Match(errors.T(errors.Parameter), err),
		errors.Match(errors.T(errors.Configuration), err):
		return CommandUserError
	default:
		return CommandError
	}
}
