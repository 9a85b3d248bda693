// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package errors

import "github.com/hashicorp/go-multierror"

// Template describes the Errs accepted by Match.  A zero field accepts any
// value, so a Template holding only a Kind accepts every Code of that Kind.
type Template struct {
	Code Code
	Kind Kind
	Op   Op
}

// T builds a Template from Code, Kind and Op arguments.  Arguments of any
// other type are ignored, and a later argument replaces an earlier one of the
// same type.
func T(args ...any) *Template {
	t := &Template{}
	for _, a := range args {
		switch arg := a.(type) {
		case Code:
			t.Code = arg
		case Kind:
			t.Kind = arg
		case Op:
			t.Op = arg
		}
	}
	return t
}

// Match reports whether err is, or wraps, an Err with every non-zero field of
// t.  Only the outermost Err in a chain is compared, since Wrap carries the
// Code outward.  An error joining several others matches when any of them
// does.
func Match(t *Template, err error) bool {
	if t == nil || err == nil {
		return false
	}
	switch joined := err.(type) {
	case *multierror.Error:
		return matchAny(t, joined.WrappedErrors())
	case interface{ Unwrap() []error }:
		return matchAny(t, joined.Unwrap())
	}

	var e *Err
	if !As(err, &e) {
		return false
	}
	switch {
	case t.Code != Unknown && t.Code != e.Code:
		return false
	case t.Kind != Other && t.Kind != e.Code.Info().Kind:
		return false
	case t.Op != "" && t.Op != e.Op:
		return false
	}
	return true
}

func matchAny(t *Template, errs []error) bool {
	for _, err := range errs {
		if Match(t, err) {
			return true
		}
	}
	return false
}
