// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source

// getOpts - iterate the inbound Options and return a struct.
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Option - how Options are passed as arguments.
type Option func(*options)

// options = how options are represented
type options struct {
	withNames []string
}

func getDefaultOptions() options {
	return options{}
}

// WithNames restricts Read to the migrations with the given ids.  Post apply
// hooks are always kept.
func WithNames(ids ...string) Option {
	return func(o *options) {
		o.withNames = append(o.withNames, ids...)
	}
}
