// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package common

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/strata/internal/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql by the imports above.
const (
	DriverPgx    = "pgx"
	DriverPq     = "postgres"
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

// SqlOpen opens a database handle for the named driver.  The "postgres"
// dialect name is served by pgx.
func SqlOpen(driverName, dataSourceName string) (*sql.DB, error) {
	switch driverName {
	case "postgres", "pgx":
		driverName = DriverPgx
	}
	return sql.Open(driverName, dataSourceName)
}

// Open parses a connection uri, opens a handle for it and verifies the
// database is reachable.
func Open(ctx context.Context, rawUri string) (*sql.DB, *Uri, error) {
	const op = "common.Open"
	u, err := ParseUri(rawUri)
	if err != nil {
		return nil, nil, errors.Wrap(ctx, err, op)
	}
	dsn, err := u.Dsn()
	if err != nil {
		return nil, nil, errors.Wrap(ctx, err, op)
	}
	db, err := sql.Open(u.DriverName(), dsn)
	if err != nil {
		return nil, nil, errors.Wrap(ctx, err, op, errors.WithMsg("unable to open %s", u.Redacted()))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(ctx, err, op, errors.WithMsg("unable to connect to %s", u.Redacted()))
	}
	return db, u, nil
}
