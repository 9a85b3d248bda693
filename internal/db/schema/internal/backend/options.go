// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"os"
	"time"
)

const (
	DefaultMigrationTable   = "_strata_migration"
	DefaultLockTable        = "_strata_lock"
	DefaultLogTable         = "_strata_log"
	DefaultLockPollInterval = 500 * time.Millisecond
)

// getOpts - iterate the inbound Options and return a struct.
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// Option - how Options are passed as arguments.
type Option func(*options)

// options = how options are represented
type options struct {
	withMigrationTable   string
	withLockTable        string
	withLogTable         string
	withPid              int
	withLockPollInterval time.Duration
}

func getDefaultOptions() options {
	return options{
		withMigrationTable:   DefaultMigrationTable,
		withLockTable:        DefaultLockTable,
		withLogTable:         DefaultLogTable,
		withPid:              os.Getpid(),
		withLockPollInterval: DefaultLockPollInterval,
	}
}

// WithMigrationTable sets the bookkeeping table name.  Empty names are
// ignored.
func WithMigrationTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.withMigrationTable = name
		}
	}
}

// WithLockTable sets the lock table name.  Empty names are ignored.
func WithLockTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.withLockTable = name
		}
	}
}

// WithLogTable sets the migration log table name.  Empty names are ignored.
func WithLogTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.withLogTable = name
		}
	}
}

// WithPid sets the process id recorded in the lock row.
func WithPid(pid int) Option {
	return func(o *options) {
		o.withPid = pid
	}
}

// WithLockPollInterval sets how long Lock waits between attempts.
func WithLockPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.withLockPollInterval = d
		}
	}
}
