// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

// Test_GetOpts provides unit tests for GetOpts and all the options
func Test_GetOpts(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		opts := getOpts()
		assert.Equal(t, DefaultLockTimeout, opts.withLockTimeout)
		assert.Nil(t, opts.withLogger)
	})
	t.Run("WithLogger", func(t *testing.T) {
		l := hclog.NewNullLogger()
		opts := getOpts(WithLogger(l))
		assert.Equal(t, l, opts.withLogger)
	})
	t.Run("WithLockTimeout", func(t *testing.T) {
		assert := assert.New(t)
		assert.Equal(time.Second, getOpts(WithLockTimeout(time.Second)).withLockTimeout)
		assert.Equal(time.Duration(0), getOpts(WithLockTimeout(0)).withLockTimeout)
		assert.Equal(DefaultLockTimeout, getOpts(WithLockTimeout(-1)).withLockTimeout)
	})
	t.Run("tables", func(t *testing.T) {
		opts := getOpts(WithMigrationTable("m"), WithLockTable("l"), WithLogTable("g"))
		testOpts := getDefaultOptions()
		testOpts.withMigrationTable = "m"
		testOpts.withLockTable = "l"
		testOpts.withLogTable = "g"
		assert.Equal(t, testOpts, opts)
	})
	t.Run("lock", func(t *testing.T) {
		opts := getOpts(WithPid(7), WithLockPollInterval(time.Millisecond))
		testOpts := getDefaultOptions()
		testOpts.withPid = 7
		testOpts.withLockPollInterval = time.Millisecond
		assert.Equal(t, testOpts, opts)
	})
	t.Run("WithForce", func(t *testing.T) {
		opts := getOpts(WithForce(true))
		testOpts := getDefaultOptions()
		testOpts.withForce = true
		assert.Equal(t, testOpts, opts)
	})
	t.Run("log", func(t *testing.T) {
		opts := getOpts(WithDeleteLog(true), WithMigrationId("m1"), WithLimit(3))
		testOpts := getDefaultOptions()
		testOpts.withDeleteLog = true
		testOpts.withMigrationId = "m1"
		testOpts.withLimit = 3
		assert.Equal(t, testOpts, opts)
	})
}
