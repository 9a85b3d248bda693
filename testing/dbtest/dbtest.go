// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

// Package dbtest provides databases for tests: sqlite files in a test's
// temporary directory and PostgreSQL or MySQL containers started with
// dockertest.
package dbtest

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
)

// Dialects
const (
	Postgres = "postgres"
	Mysql    = "mysql"
	Sqlite   = "sqlite"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyz"

func randStr(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

// SqliteUrl returns the connection uri of a new sqlite database file.  The
// file lives in t's temporary directory.
func SqliteUrl(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("strata_test_%s.db", randStr(8)))
	return "sqlite:///" + filepath.ToSlash(path)
}

// StartOrSkip starts dialect in docker and returns its connection uri.  The
// test is skipped when docker is not reachable; the container is removed
// when the test ends.
func StartOrSkip(t testing.TB, dialect string, opt ...Option) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping docker test in short mode")
	}
	cleanup, url, _, err := StartDbInDocker(dialect, opt...)
	if err != nil {
		t.Skipf("%s is not available: %v", dialect, err)
	}
	t.Cleanup(func() {
		if err := cleanup(); err != nil {
			t.Logf("cleaning up %s container: %v", dialect, err)
		}
	})
	return url
}
