// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

// Package dialect holds the per-database differences the migration backend
// needs: identifier quoting, placeholder style, session setup and the mapping
// of driver errors onto error codes.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/errors"
)

// Querier runs a single-row query.  *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect describes one database engine.
type Dialect interface {
	// Name returns the dialect name, for example "postgres".
	Name() string

	// Init inspects the session once a connection is available.
	Init(ctx context.Context, q Querier) error

	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string

	// Rebind rewrites '?' placeholders into the dialect's style.
	Rebind(query string) string

	// ClassifyError maps a driver error onto a Code.  Errors that are not
	// recognised map to errors.Unknown.
	ClassifyError(err error) errors.Code
}

// New returns the dialect with the given name.
func New(name string) (Dialect, error) {
	const op = "dialect.New"
	switch name {
	case common.Postgres:
		return &postgres{}, nil
	case common.Mysql:
		return &mysql{}, nil
	case common.Sqlite:
		return &sqlite{}, nil
	default:
		return nil, errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("unsupported dialect %q", name))
	}
}

// Wrap returns err wrapped with op and the code d assigns to it.
func Wrap(ctx context.Context, d Dialect, err error, op errors.Op) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(ctx, err, op, errors.WithCode(d.ClassifyError(err)))
}

// quoteWith doubles any embedded quote character and wraps name in q.
func quoteWith(q, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// rebindNumbered replaces each '?' outside a string literal with
// prefix followed by its 1-based position.
func rebindNumbered(query, prefix string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for _, r := range query {
		switch {
		case r == '\'':
			inString = !inString
		case r == '?' && !inString:
			n++
			fmt.Fprintf(&b, "%s%d", prefix, n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
