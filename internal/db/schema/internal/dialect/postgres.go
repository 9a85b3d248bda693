// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package dialect

import (
	"context"

	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type postgres struct{}

func (*postgres) Name() string { return common.Postgres }

func (*postgres) Init(context.Context, Querier) error { return nil }

func (*postgres) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (*postgres) Rebind(query string) string { return rebindNumbered(query, "$") }

// ClassifyError understands both pgx and lib/pq errors, since either driver
// may be selected by the connection uri.
func (*postgres) ClassifyError(err error) errors.Code {
	var code string
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return errors.Unknown
	}
	switch code {
	case "23505":
		return errors.NotUnique
	case "23502":
		return errors.NotNull
	case "23514":
		return errors.CheckConstraint
	case "42P01":
		return errors.MissingTable
	case "55P03", "40P01": // lock_not_available, deadlock_detected
		return errors.Contention
	default:
		return errors.NotSpecificIntegrity
	}
}
