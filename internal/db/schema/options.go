// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultLockTimeout is how long batch operations wait for the migration
// lock.
const DefaultLockTimeout = 10 * time.Second

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
	withLogger           hclog.Logger
	withLockTimeout      time.Duration
	withMigrationTable   string
	withLockTable        string
	withLogTable         string
	withPid              int
	withLockPollInterval time.Duration
	withForce            bool
	withDeleteLog        bool
	withMigrationId      string
	withLimit            int
}

func getDefaultOptions() options {
	return options{
		withLockTimeout: DefaultLockTimeout,
	}
}

// WithLogger provides the logger used by the Manager.  When it is not set the
// logger carried by each call's context is used.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		o.withLogger = l
	}
}

// WithLockTimeout sets how long to wait for the migration lock.  Negative
// values are ignored.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.withLockTimeout = d
		}
	}
}

// WithMigrationTable sets the bookkeeping table name.
func WithMigrationTable(name string) Option {
	return func(o *options) {
		o.withMigrationTable = name
	}
}

// WithLockTable sets the lock table name.
func WithLockTable(name string) Option {
	return func(o *options) {
		o.withLockTable = name
	}
}

// WithLogTable sets the migration log table name.
func WithLogTable(name string) Option {
	return func(o *options) {
		o.withLogTable = name
	}
}

// WithPid sets the process id recorded in the lock table.
func WithPid(pid int) Option {
	return func(o *options) {
		o.withPid = pid
	}
}

// WithLockPollInterval sets how often a waiting process retries the lock.
func WithLockPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.withLockPollInterval = d
	}
}

// WithForce continues past database errors raised by migration steps.
func WithForce(force bool) Option {
	return func(o *options) {
		o.withForce = force
	}
}

// WithDeleteLog provides an option to specify the deletion of log entries.
func WithDeleteLog(del bool) Option {
	return func(o *options) {
		o.withDeleteLog = del
	}
}

// WithMigrationId restricts the migration log to one migration.
func WithMigrationId(id string) Option {
	return func(o *options) {
		o.withMigrationId = id
	}
}

// WithLimit restricts the migration log to the newest n entries.
func WithLimit(n int) Option {
	return func(o *options) {
		o.withLimit = n
	}
}
