// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package dialect

import (
	"context"
	"strings"

	driver "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/errors"
)

// mysql quotes with backticks unless the session runs with ANSI_QUOTES, which
// Init detects.
type mysql struct {
	ansiQuotes bool
}

func (*mysql) Name() string { return common.Mysql }

func (m *mysql) Init(ctx context.Context, q Querier) error {
	const op = "dialect.(mysql).Init"
	var mode string
	if err := q.QueryRowContext(ctx, "SELECT @@SESSION.sql_mode").Scan(&mode); err != nil {
		return Wrap(ctx, m, err, op)
	}
	m.ansiQuotes = false
	for _, flag := range strings.Split(mode, ",") {
		if strings.EqualFold(strings.TrimSpace(flag), "ANSI_QUOTES") {
			m.ansiQuotes = true
		}
	}
	return nil
}

func (m *mysql) QuoteIdentifier(name string) string {
	if m.ansiQuotes {
		return quoteWith(`"`, name)
	}
	return quoteWith("`", name)
}

func (*mysql) Rebind(query string) string { return query }

func (*mysql) ClassifyError(err error) errors.Code {
	var myErr *driver.MySQLError
	if !errors.As(err, &myErr) {
		return errors.Unknown
	}
	switch myErr.Number {
	case 1062:
		return errors.NotUnique
	case 1048:
		return errors.NotNull
	case 3819:
		return errors.CheckConstraint
	case 1146:
		return errors.MissingTable
	case 1205, 1213: // lock wait timeout, deadlock
		return errors.Contention
	default:
		return errors.NotSpecificIntegrity
	}
}
