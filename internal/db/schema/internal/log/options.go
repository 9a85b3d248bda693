// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package log

// GetOpts - iterate the inbound Options and return a struct.
func GetOpts(opt ...Option) Options {
	opts := getDefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Option - how Options are passed as arguments.
type Option func(*Options)

// Options - how Options are represented.
type Options struct {
	WithDeleteLog   bool
	WithMigrationId string
	WithLimit       int
}

func getDefaultOptions() Options {
	return Options{}
}

// WithDeleteLog removes the returned entries from the log after reading.
func WithDeleteLog(del bool) Option {
	return func(o *Options) {
		o.WithDeleteLog = del
	}
}

// WithMigrationId restricts entries to a single migration.
func WithMigrationId(id string) Option {
	return func(o *Options) {
		o.WithMigrationId = id
	}
}

// WithLimit caps the number of entries returned, newest first.  Zero means no
// limit.
func WithLimit(n int) Option {
	return func(o *Options) {
		o.WithLimit = n
	}
}
