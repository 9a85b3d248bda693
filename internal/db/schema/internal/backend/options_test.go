// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Test_GetOpts provides unit tests for GetOpts and all the options
func Test_GetOpts(t *testing.T) {
	t.Parallel()
	t.Run("defaults", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts()
		assert.Equal(DefaultMigrationTable, opts.withMigrationTable)
		assert.Equal(DefaultLockTable, opts.withLockTable)
		assert.Equal(DefaultLogTable, opts.withLogTable)
		assert.Equal(os.Getpid(), opts.withPid)
		assert.Equal(DefaultLockPollInterval, opts.withLockPollInterval)
	})
	t.Run("WithTables", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts(WithMigrationTable("m"), WithLockTable("l"), WithLogTable("g"))
		testOpts := getDefaultOptions()
		testOpts.withMigrationTable = "m"
		testOpts.withLockTable = "l"
		testOpts.withLogTable = "g"
		assert.Equal(opts, testOpts)
	})
	t.Run("empty-table-names-ignored", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts(WithMigrationTable(""), WithLockTable(""), WithLogTable(""))
		assert.Equal(getDefaultOptions(), opts)
	})
	t.Run("WithPid", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts(WithPid(42))
		testOpts := getDefaultOptions()
		testOpts.withPid = 42
		assert.Equal(opts, testOpts)
	})
	t.Run("WithLockPollInterval", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts(WithLockPollInterval(time.Second))
		testOpts := getDefaultOptions()
		testOpts.withLockPollInterval = time.Second
		assert.Equal(opts, testOpts)
		assert.Equal(DefaultLockPollInterval, getOpts(WithLockPollInterval(0)).withLockPollInterval)
	})
}
