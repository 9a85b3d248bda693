// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
database {
  url             = "sqlite:///app.db"
  migration_table = "_mig"
  lock_table      = "_mig_lock"
  log_table       = "_mig_log"
  lock_timeout    = "30s"
}
sources    = ["./migrations", "./seed"]
batch_mode = true
log_level  = "debug"
log_format = "json"
`

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    *Config
		wantErr string
	}{
		{
			name: "full",
			in:   testConfig,
			want: &Config{
				Database: &Database{
					Url:            "sqlite:///app.db",
					MigrationTable: "_mig",
					LockTable:      "_mig_lock",
					LogTable:       "_mig_log",
					LockTimeoutRaw: "30s",
					LockTimeout:    30 * time.Second,
				},
				Sources:   []string{"./migrations", "./seed"},
				BatchMode: true,
				LogLevel:  "debug",
				LogFormat: "json",
			},
		},
		{
			name: "empty",
			in:   "",
			want: &Config{Database: &Database{}},
		},
		{
			name: "integer-seconds",
			in:   `database { lock_timeout = 5 }`,
			want: &Config{Database: &Database{LockTimeoutRaw: 5, LockTimeout: 5 * time.Second}},
		},
		{
			name:    "bad-timeout",
			in:      `database { lock_timeout = "soon" }`,
			wantErr: "error parsing lock_timeout",
		},
		{
			name:    "bad-hcl",
			in:      `database {`,
			wantErr: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := Parse(tt.in)
			if tt.want == nil {
				require.Error(err)
				assert.Contains(err.Error(), tt.wantErr)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want.Database.Url, got.Database.Url)
			assert.Equal(tt.want.Database.MigrationTable, got.Database.MigrationTable)
			assert.Equal(tt.want.Database.LockTable, got.Database.LockTable)
			assert.Equal(tt.want.Database.LogTable, got.Database.LogTable)
			assert.Equal(tt.want.Database.LockTimeout, got.Database.LockTimeout)
			assert.Equal(tt.want.Sources, got.Sources)
			assert.Equal(tt.want.BatchMode, got.BatchMode)
			assert.Equal(tt.want.LogLevel, got.LogLevel)
			assert.Equal(tt.want.LogFormat, got.LogFormat)
		})
	}
}

func TestFind(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, "", Find(nested))

	p := filepath.Join(root, FileName)
	require.NoError(t, os.WriteFile(p, []byte(testConfig), 0o600))
	assert.Equal(t, p, Find(nested))
	assert.Equal(t, p, Find(root))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(testConfig), 0o600))

	t.Run("file", func(t *testing.T) {
		c, err := Load("", dir)
		require.NoError(t, err)
		assert.Equal(t, p, c.Path)
		assert.Equal(t, "sqlite:///app.db", c.Database.Url)
		assert.True(t, c.BatchMode)
	})

	t.Run("env-overrides-file", func(t *testing.T) {
		t.Setenv("STRATA_DATABASE_URL", "sqlite:///other.db")
		t.Setenv("STRATA_SOURCES", "one,two")
		t.Setenv("STRATA_BATCH_MODE", "false")
		t.Setenv("STRATA_LOCK_TIMEOUT", "2m")
		c, err := Load(p, "")
		require.NoError(t, err)
		assert.Equal(t, "sqlite:///other.db", c.Database.Url)
		assert.Equal(t, []string{"one", "two"}, c.Sources)
		assert.False(t, c.BatchMode)
		assert.Equal(t, 2*time.Minute, c.Database.LockTimeout)
		assert.Equal(t, "_mig", c.Database.MigrationTable)
	})

	t.Run("no-file", func(t *testing.T) {
		c, err := Load("", t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, c.Path)
		assert.Empty(t, c.Database.Url)
	})

	t.Run("missing-named-file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.hcl"), "")
		require.Error(t, err)
	})

	t.Run("bad-env-timeout", func(t *testing.T) {
		t.Setenv("STRATA_LOCK_TIMEOUT", "whenever")
		_, err := Load(p, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STRATA_LOCK_TIMEOUT")
	})
}

func TestParseAddress(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "url")
	require.NoError(t, os.WriteFile(p, []byte("postgres://u@db/app\n"), 0o600))
	t.Setenv("TEST_STRATA_URL", "mysql://root@localhost/app")

	tests := []struct {
		in   string
		want string
	}{
		{in: "sqlite:///app.db", want: "sqlite:///app.db"},
		{in: "env://TEST_STRATA_URL", want: "mysql://root@localhost/app"},
		{in: "file://" + p, want: "postgres://u@db/app"},
		{in: "  postgres://u@db/app  ", want: "postgres://u@db/app"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
