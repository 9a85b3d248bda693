// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/hcl"
	"github.com/kelseyhightower/envconfig"
)

// FileName is the configuration file looked for when none is named.
const FileName = "strata.hcl"

// EnvPrefix prefixes every environment override, as in STRATA_DATABASE_URL.
const EnvPrefix = "strata"

// Config is the configuration for the strata command line.
type Config struct {
	Database  *Database `hcl:"database"`
	Sources   []string  `hcl:"sources"`
	BatchMode bool      `hcl:"batch_mode"`
	LogLevel  string    `hcl:"log_level"`
	LogFormat string    `hcl:"log_format"`

	// Path is the file the config was read from, if any.
	Path string `hcl:"-"`
}

type Database struct {
	// Url may be a literal connection uri or an env:// or file:// reference
	// to one.
	Url            string `hcl:"url"`
	MigrationTable string `hcl:"migration_table"`
	LockTable      string `hcl:"lock_table"`
	LogTable       string `hcl:"log_table"`

	LockTimeoutRaw any           `hcl:"lock_timeout"`
	LockTimeout    time.Duration `hcl:"-"`
}

// environment holds the STRATA_* overrides.  Unset variables leave the
// matching field zero so they never mask file values.
type environment struct {
	DatabaseUrl    string   `envconfig:"DATABASE_URL"`
	Sources        []string `envconfig:"SOURCES"`
	MigrationTable string   `envconfig:"MIGRATION_TABLE"`
	LockTable      string   `envconfig:"LOCK_TABLE"`
	LogTable       string   `envconfig:"LOG_TABLE"`
	LockTimeout    string   `envconfig:"LOCK_TIMEOUT"`
	BatchMode      *bool    `envconfig:"BATCH_MODE"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	LogFormat      string   `envconfig:"LOG_FORMAT"`
}

func New() *Config {
	return &Config{
		Database: &Database{},
	}
}

// LoadFile loads the configuration from the given file.
func LoadFile(path string) (*Config, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c, err := Parse(string(d))
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

func Parse(d string) (*Config, error) {
	obj, err := hcl.Parse(d)
	if err != nil {
		return nil, err
	}

	result := New()
	if err := hcl.DecodeObject(result, obj); err != nil {
		return nil, err
	}
	if result.Database == nil {
		result.Database = &Database{}
	}

	if result.Database.LockTimeoutRaw != nil {
		t, err := parseutil.ParseDurationSecond(result.Database.LockTimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("error parsing lock_timeout: %w", err)
		}
		if t < 0 {
			return nil, errors.New("lock_timeout must not be negative")
		}
		result.Database.LockTimeout = t
	}

	return result, nil
}

// Load reads the file at path, or the nearest strata.hcl at or above dir
// when path is empty, and applies the environment overrides.  A missing
// strata.hcl is not an error; a missing named file is.
func Load(path, dir string) (*Config, error) {
	if path == "" {
		path = Find(dir)
	}

	c := New()
	if path != "" {
		var err error
		if c, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// Find returns the path of the nearest strata.hcl in dir or one of its
// parents, or "" when there is none.
func Find(dir string) string {
	for {
		p := filepath.Join(dir, FileName)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (c *Config) applyEnv() error {
	var env environment
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("error reading environment: %w", err)
	}

	set := func(target *string, v string) {
		if v != "" {
			*target = v
		}
	}
	set(&c.Database.Url, env.DatabaseUrl)
	set(&c.Database.MigrationTable, env.MigrationTable)
	set(&c.Database.LockTable, env.LockTable)
	set(&c.Database.LogTable, env.LogTable)
	set(&c.LogLevel, env.LogLevel)
	set(&c.LogFormat, env.LogFormat)
	if len(env.Sources) > 0 {
		c.Sources = env.Sources
	}
	if env.BatchMode != nil {
		c.BatchMode = *env.BatchMode
	}
	if env.LockTimeout != "" {
		t, err := parseutil.ParseDurationSecond(env.LockTimeout)
		if err != nil {
			return fmt.Errorf("error parsing %s_LOCK_TIMEOUT: %w", strings.ToUpper(EnvPrefix), err)
		}
		c.Database.LockTimeout = t
	}
	return nil
}

// DatabaseUrl resolves the configured url, reading env:// and file://
// references.
func (c *Config) DatabaseUrl() (string, error) {
	if c.Database == nil || c.Database.Url == "" {
		return "", nil
	}
	return ParseAddress(c.Database.Url)
}

// ParseAddress resolves env:// and file:// references, returning any other
// string as it was.
func ParseAddress(addr string) (string, error) {
	u, err := parseutil.ParsePath(addr)
	if err != nil && !errors.Is(err, parseutil.ErrNotAUrl) {
		return "", fmt.Errorf("error parsing database url: %w", err)
	}
	return strings.TrimSpace(u), nil
}
