// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Op represents an operation (package.function).
// For example schema.(Manager).ApplyOne
type Op string

// Err provides the ability to specify a Msg, Op, Code and Wrapped error.
// We've chosen Err over Error for the identifier to support the easy embedding
// of Errs.  Errs can be embedded without a conflict between the embedded Err
// and Err.Error().
type Err struct {
	// Code is the error's code, which can be used to get the error's
	// errorCodeInfo, which contains the error's Kind and Message
	Code Code

	// Msg for the error
	Msg string

	// Op represents the operation raising/propagating an error and is optional.
	Op Op

	// Wrapped is the error which this Err wraps and will be nil if there's no
	// error to wrap.
	Wrapped error
}

// E creates a new Err with provided code and supports the options of:
//
// * WithOp() - allows you to specify an optional Op (operation).
//
// * WithMsg() - allows you to specify an optional error msg, if the default
// msg for the error Code is not sufficient.
//
// * WithWrap() - allows you to specify an error to wrap.  If the wrapped error
// is an Err and no Code was given, the wrapped error's Code is used.
//
// * WithCode() - allows you to specify an optional Code.
func E(ctx context.Context, opt ...Option) error {
	opts := GetOpts(opt...)
	code := opts.withCode
	if code == Unknown && opts.withErrWrapped != nil {
		var wrapped *Err
		if As(opts.withErrWrapped, &wrapped) {
			code = wrapped.Code
		}
	}
	return &Err{
		Code:    code,
		Op:      opts.withOp,
		Wrapped: opts.withErrWrapped,
		Msg:     opts.withErrMsg,
	}
}

// New creates a new Err with the given code, op and msg.  Supports the same
// options as E.
func New(ctx context.Context, c Code, op Op, msg string, opt ...Option) error {
	opt = append(opt, WithCode(c), WithOp(op), WithMsg("%s", msg))
	return E(ctx, opt...)
}

// Wrap creates a new Err from the provided err and op, preserving the code
// from the originating error.  It returns nil for a nil err.
func Wrap(ctx context.Context, e error, op Op, opt ...Option) error {
	if e == nil {
		return nil
	}
	if op != "" {
		opt = append(opt, WithOp(op))
	}
	opt = append(opt, WithWrap(e))
	return E(ctx, opt...)
}

// Info about the Err
func (e *Err) Info() Info {
	if e == nil {
		return errorCodeInfo[Unknown]
	}
	return e.Code.Info()
}

// Error satisfies the error interface and returns a string representation of
// the Err
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	var s strings.Builder
	if e.Op != "" {
		join(&s, ": ", string(e.Op))
	}
	if e.Msg != "" {
		join(&s, ": ", e.Msg)
	}

	var skipInfo bool
	var wrapped *Err
	if As(e.Wrapped, &wrapped) {
		// the wrapped error will already report this code.
		skipInfo = wrapped.Code == e.Code
	}
	if e.Wrapped != nil {
		join(&s, ": ", e.Wrapped.Error())
	}
	if !skipInfo && e.Code != Unknown {
		info := e.Code.Info()
		join(&s, ": ", fmt.Sprintf("%s, %s: error #%d", info.Message, info.Kind, e.Code))
	}
	if s.Len() == 0 {
		return e.Code.Info().Message
	}
	return s.String()
}

// Unwrap implements the errors.Unwrap interface and allows callers to use the
// errors.Is() and errors.As() functions effectively for any wrapped errors.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

func join(str *strings.Builder, delim string, s string) {
	if str.Len() == 0 {
		_, _ = str.WriteString(s)
		return
	}
	_, _ = str.WriteString(delim + s)
}

// Is is the equivalent of the std errors.Is, but allows clients to only
// import this package for the capability.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is the equivalent of the std errors.As, and allows clients to only
// import this package for the capability.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap is the equivalent of the std errors.Unwrap, and allows clients to
// only import this package for the capability.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join is the equivalent of the std errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
