// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hashicorp/strata/internal/db/common"
	"github.com/hashicorp/strata/internal/db/schema"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/db/schema/source"
	"github.com/hashicorp/strata/internal/errors"
	"github.com/hashicorp/strata/testing/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type def struct {
	id        string
	postApply bool
	load      migration.LoadFunc
}

// steps returns a LoadFunc declaring one step per apply/rollback pair.
func steps(depends []string, pairs ...string) migration.LoadFunc {
	return func(b *migration.Builder) error {
		b.Depends(depends...)
		for i := 0; i+1 < len(pairs); i += 2 {
			var rollback migration.Action
			if pairs[i+1] != "" {
				rollback = migration.Statement(pairs[i+1])
			}
			b.Step(migration.Statement(pairs[i]), rollback)
		}
		return nil
	}
}

func collection(ctx context.Context, t *testing.T, defs ...def) *migration.Collection {
	t.Helper()
	set := source.NewSet("test")
	for _, d := range defs {
		require.NoError(t, set.Register(d.id, d.load, migration.WithPostApply(d.postApply)))
	}
	c, err := source.Read(ctx, []source.Source{set})
	require.NoError(t, err)
	return c
}

// setup returns a Manager on a new sqlite database, a separate handle used to
// inspect the database and the database uri.
func setup(ctx context.Context, t *testing.T, opt ...schema.Option) (*schema.Manager, *sql.DB, string) {
	t.Helper()
	u := dbtest.SqliteUrl(t)
	m, err := schema.Open(ctx, u, opt...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	db, _, err := common.Open(ctx, u)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return m, db, u
}

func count(ctx context.Context, t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(ctx, query, args...).Scan(&n))
	return n
}

func tableExists(ctx context.Context, t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	return count(ctx, t, db, "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?", name) > 0
}

func ids(c *migration.Collection) []string { return c.Ids() }

func TestNewManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	m, db, _ := setup(ctx, t, schema.WithMigrationTable("applied"))
	assert.Equal("sqlite", m.Dialect())
	assert.True(m.HasTransactionalDDL())
	for _, table := range []string{"applied", "_strata_lock", "_strata_log"} {
		assert.True(tableExists(ctx, t, db, table), table)
	}

	_, err := schema.NewManager(ctx, "oracle", db)
	require.Error(err)
	assert.True(errors.Match(errors.T(errors.InvalidParameter), err))

	closed, _, err := common.Open(ctx, dbtest.SqliteUrl(t))
	require.NoError(err)
	require.NoError(closed.Close())
	_, err = schema.NewManager(ctx, "sqlite", closed)
	require.Error(err)
	assert.True(errors.Match(errors.T(errors.Op("schema.NewManager")), err))
}

// Test that migrations are applied in dependency order whatever the order
// they are read in, and rolled back in the reverse order.
func TestManager_DependencyOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)

	c := collection(ctx, t,
		def{id: "m2", load: steps([]string{"m1"}, "INSERT INTO t (id) VALUES (1)", "DELETE FROM t WHERE id = 1")},
		def{id: "m1", load: steps(nil, "CREATE TABLE t (id INT)", "DROP TABLE t")},
	)

	pending, err := m.ToApply(ctx, c)
	require.NoError(err)
	assert.Equal([]string{"m1", "m2"}, ids(pending))

	require.NoError(m.ApplyMigrations(ctx, pending))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM t"))

	pending, err = m.ToApply(ctx, c)
	require.NoError(err)
	assert.Zero(pending.Len(), "nothing left to apply")

	applied, err := m.ToRollback(ctx, c)
	require.NoError(err)
	assert.Equal([]string{"m2", "m1"}, ids(applied))

	require.NoError(m.RollbackMigrations(ctx, applied))
	assert.False(tableExists(ctx, t, db, "t"))
	assert.Zero(count(ctx, t, db, "SELECT COUNT(1) FROM _strata_migration"))

	pending, err = m.ToApply(ctx, c)
	require.NoError(err)
	assert.Equal([]string{"m1", "m2"}, ids(pending))
}

// Test that a failing step undoes the steps that ran before it and the
// original error is returned.
func TestManager_ApplyOne_Compensates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)
	_, err := db.ExecContext(ctx, "CREATE TABLE t (id INT)")
	require.NoError(err)

	c := collection(ctx, t, def{id: "m1", load: steps(nil,
		"INSERT INTO t (id) VALUES (1)", "DELETE FROM t WHERE id = 1",
		"INSERT INTO missing (id) VALUES (1)", "",
		"INSERT INTO t (id) VALUES (3)", "DELETE FROM t WHERE id = 3",
	)})
	mg, _ := c.Get("m1")

	err = m.ApplyOne(ctx, mg)
	require.Error(err)
	assert.True(errors.IsMissingTableError(err))
	assert.Zero(count(ctx, t, db, "SELECT COUNT(1) FROM t"))

	applied, err := m.Applied(ctx)
	require.NoError(err)
	assert.NotContains(applied, "m1")
}

func TestManager_IgnoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)
	_, err := db.ExecContext(ctx, "CREATE TABLE t (id INT)")
	require.NoError(err)

	c := collection(ctx, t, def{id: "m1", load: func(b *migration.Builder) error {
		b.Step(migration.Statement("INSERT INTO missing (id) VALUES (1)"), nil, migration.WithIgnoreErrors(migration.IgnoreApply))
		b.Step(migration.Statement("INSERT INTO t (id) VALUES (2)"), nil)
		return nil
	}})
	require.NoError(m.ApplyMigrations(ctx, c))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM t WHERE id = 2"))
	applied, err := m.Applied(ctx)
	require.NoError(err)
	assert.Contains(applied, "m1")
}

func TestManager_Force(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, _, _ := setup(ctx, t)

	c := collection(ctx, t, def{id: "m1", load: steps(nil, "INSERT INTO missing (id) VALUES (1)", "")})
	require.Error(m.ApplyMigrations(ctx, c))
	require.NoError(m.ApplyMigrations(ctx, c, schema.WithForce(true)))
	applied, err := m.Applied(ctx)
	require.NoError(err)
	assert.Contains(applied, "m1")
}

// Test that a batch skips migrations that cannot be loaded, stops at the
// first other failure and reports the last migration applied.
func TestManager_BatchFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "CREATE TABLE t (id INT)", "DROP TABLE t")},
		def{id: "bad", load: steps([]string{"nope"}, "SELECT 1", "")},
		def{id: "m2", load: steps([]string{"m1"}, "INSERT INTO t (id) VALUES (1)", "")},
		def{id: "m3", load: steps([]string{"m2"}, "INSERT INTO missing (id) VALUES (1)", "")},
		def{id: "m4", load: steps([]string{"m3"}, "INSERT INTO t (id) VALUES (4)", "")},
	)
	pending, err := m.ToApply(ctx, c)
	require.NoError(err)

	err = m.ApplyMigrations(ctx, pending)
	require.Error(err)
	assert.True(errors.IsMissingTableError(err))
	assert.Contains(err.Error(), `apply of "m3" failed; last successful apply was "m2"`)

	applied, err := m.Applied(ctx)
	require.NoError(err)
	assert.Len(applied, 2)
	assert.Contains(applied, "m1")
	assert.Contains(applied, "m2")
	assert.Zero(count(ctx, t, db, "SELECT COUNT(1) FROM t WHERE id = 4"))

	st, err := m.LockState(ctx)
	require.NoError(err)
	assert.False(st.Held, "the lock is released after a failure")

	skip := collection(ctx, t,
		def{id: "bad", load: steps([]string{"nope"}, "SELECT 1", "")},
		def{id: "good", load: steps(nil, "SELECT 1", "")},
	)
	require.NoError(m.ApplyMigrations(ctx, skip))
	applied, err = m.Applied(ctx)
	require.NoError(err)
	assert.Contains(applied, "good")
	assert.NotContains(applied, "bad")
}

func TestManager_PostApply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)
	_, err := db.ExecContext(ctx, "CREATE TABLE hook_runs (id INT)")
	require.NoError(err)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "CREATE TABLE t (id INT)", "DROP TABLE t")},
		def{id: "post-apply", postApply: true, load: func(b *migration.Builder) error {
			b.Step(migration.Statement("INSERT INTO hook_runs (id) VALUES (1)"), nil)
			b.Step(migration.Statement("INSERT INTO missing (id) VALUES (1)"), nil)
			return nil
		}},
	)
	assert.Equal([]string{"m1"}, ids(c))

	require.NoError(m.ApplyMigrations(ctx, c))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"))

	pending, err := m.ToApply(ctx, c)
	require.NoError(err)
	require.NoError(m.ApplyMigrations(ctx, pending))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"), "an empty batch runs no hooks")

	done, err := m.ToRollback(ctx, c)
	require.NoError(err)
	require.NoError(m.RollbackMigrations(ctx, done))
	assert.Equal(2, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"))

	applied, err := m.Applied(ctx)
	require.NoError(err)
	assert.Empty(applied, "hooks are never recorded")
}

func TestManager_NonTransactional(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)
	_, err := db.ExecContext(ctx, "CREATE TABLE t (id INT)")
	require.NoError(err)

	c := collection(ctx, t, def{id: "m1", load: func(b *migration.Builder) error {
		b.NonTransactional()
		b.Step(migration.Statement("INSERT INTO t (id) VALUES (1)"), nil)
		b.Step(migration.Statement("INSERT INTO missing (id) VALUES (1)"), nil)
		return nil
	}})
	require.Error(m.ApplyMigrations(ctx, c))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM t"), "autocommit keeps the first insert")
	applied, err := m.Applied(ctx)
	require.NoError(err)
	assert.Empty(applied)
}

func TestManager_MarkUnmark(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "CREATE TABLE t (id INT)", "DROP TABLE t")},
		def{id: "m2", load: steps([]string{"m1"}, "INSERT INTO t (id) VALUES (1)", "")},
		def{id: "hook", postApply: true, load: steps(nil, "SELECT 1", "")},
	)
	require.NoError(m.MarkMigrations(ctx, c))
	require.NoError(m.MarkMigrations(ctx, c), "marking twice is harmless")
	assert.False(tableExists(ctx, t, db, "t"), "marking runs no steps")

	statuses, err := m.Status(ctx, c)
	require.NoError(err)
	require.Len(statuses, 2)
	for _, s := range statuses {
		assert.True(s.Applied, s.Migration.Id())
		assert.False(s.AppliedAt.IsZero())
	}

	only, err := c.WithDescendants(ctx, "m2")
	require.NoError(err)
	require.NoError(m.UnmarkMigrations(ctx, only))
	statuses, err = m.Status(ctx, c)
	require.NoError(err)
	assert.True(statuses[0].Applied)
	assert.False(statuses[1].Applied)
	assert.True(statuses[1].AppliedAt.IsZero())

	entries, err := m.GetMigrationLog(ctx)
	require.NoError(err)
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.MigrationId+":"+e.Operation)
	}
	assert.Equal([]string{"m1:mark", "m2:mark", "m2:unmark"}, ops)
}

func TestManager_Reapply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "CREATE TABLE t (id INT)", "DROP TABLE t")},
		def{id: "m2", load: steps([]string{"m1"}, "INSERT INTO t (id) VALUES (1)", "DELETE FROM t WHERE id = 1")},
	)
	require.NoError(m.ApplyMigrations(ctx, c))
	_, err := db.ExecContext(ctx, "INSERT INTO t (id) VALUES (99)")
	require.NoError(err)

	require.NoError(m.ReapplyMigrations(ctx, c))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM t"))
	assert.Zero(count(ctx, t, db, "SELECT COUNT(1) FROM t WHERE id = 99"))

	entries, err := m.GetMigrationLog(ctx, schema.WithMigrationId("m1"))
	require.NoError(err)
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.Operation)
	}
	assert.Equal([]string{"apply", "rollback", "apply"}, ops)
}

func TestManager_Reapply_PostApply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, db, _ := setup(ctx, t)
	_, err := db.ExecContext(ctx, "CREATE TABLE hook_runs (id INT)")
	require.NoError(err)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "CREATE TABLE t (id INT)", "DROP TABLE t")},
		def{id: "post-apply", postApply: true, load: steps(nil, "INSERT INTO hook_runs (id) VALUES (1)", "")},
	)
	require.NoError(m.ApplyMigrations(ctx, c))
	require.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"))

	require.NoError(m.ReapplyMigrations(ctx, c))
	assert.Equal(2, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"), "hooks run once per reapply")
	assert.True(tableExists(ctx, t, db, "t"))
}

func TestManager_GetMigrationLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m, _, _ := setup(ctx, t)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "SELECT 1", "")},
		def{id: "m2", load: steps(nil, "SELECT 2", "")},
	)
	require.NoError(m.ApplyMigrations(ctx, c))

	newest, err := m.GetMigrationLog(ctx, schema.WithLimit(1))
	require.NoError(err)
	require.Len(newest, 1)
	assert.Equal("m2", newest[0].MigrationId)
	assert.NotEmpty(newest[0].Id)
	assert.NotEmpty(newest[0].Username)
	assert.False(newest[0].CreateTime.IsZero())

	all, err := m.GetMigrationLog(ctx, schema.WithDeleteLog(true))
	require.NoError(err)
	assert.Len(all, 2)

	all, err = m.GetMigrationLog(ctx)
	require.NoError(err)
	assert.Empty(all)
}

// Test that a batch fails with LockTimeout while another process holds the
// lock, and succeeds once it is released or broken.
func TestManager_Lock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	poll := schema.WithLockPollInterval(10 * time.Millisecond)
	m1, _, u := setup(ctx, t, schema.WithPid(1001), poll)
	m2, err := schema.Open(ctx, u, schema.WithPid(1002), poll, schema.WithLockTimeout(50*time.Millisecond))
	require.NoError(err)
	t.Cleanup(func() { _ = m2.Close() })

	c := collection(ctx, t, def{id: "m1", load: steps(nil, "SELECT 1", "")})

	require.NoError(m1.Lock(ctx))
	st, err := m2.LockState(ctx)
	require.NoError(err)
	assert.True(st.Held)
	assert.Equal(1001, st.Pid)

	err = m2.ApplyMigrations(ctx, c)
	require.Error(err)
	assert.True(errors.IsLockTimeout(err))
	assert.True(errors.Match(errors.T(errors.LockTimeout, errors.Lock, errors.Op("schema.(Manager).ApplyMigrations")), err))

	require.NoError(m1.ApplyMigrations(ctx, c), "the holder can run batches")
	require.NoError(m1.Unlock(ctx))

	done, err := m2.ToRollback(ctx, c)
	require.NoError(err)
	require.NoError(m2.RollbackMigrations(ctx, done))

	require.NoError(m1.Lock(ctx))
	require.NoError(m2.BreakLock(ctx))
	pending, err := m2.ToApply(ctx, c)
	require.NoError(err)
	require.NoError(m2.ApplyMigrations(ctx, pending))

	err = m2.Unlock(ctx)
	require.Error(err)
	assert.True(errors.Match(errors.T(errors.LockNotHeld), err))
}

// Test that two processes that select the same migrations before either
// takes the lock run each migration only once.
func TestManager_SelectedByTwoProcesses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m1, db, u := setup(ctx, t, schema.WithPid(1001))
	m2, err := schema.Open(ctx, u, schema.WithPid(1002))
	require.NoError(err)
	t.Cleanup(func() { _ = m2.Close() })
	_, err = db.ExecContext(ctx, "CREATE TABLE t (id INT)")
	require.NoError(err)
	_, err = db.ExecContext(ctx, "CREATE TABLE hook_runs (id INT)")
	require.NoError(err)

	c := collection(ctx, t,
		def{id: "m1", load: steps(nil, "INSERT INTO t (id) VALUES (1)", "DELETE FROM t WHERE id = 1")},
		def{id: "post-apply", postApply: true, load: steps(nil, "INSERT INTO hook_runs (id) VALUES (1)", "")},
	)

	pending1, err := m1.ToApply(ctx, c)
	require.NoError(err)
	pending2, err := m2.ToApply(ctx, c)
	require.NoError(err)
	assert.Equal([]string{"m1"}, ids(pending1))
	assert.Equal([]string{"m1"}, ids(pending2))

	require.NoError(m1.ApplyMigrations(ctx, pending1))
	require.NoError(m2.ApplyMigrations(ctx, pending2), "already applied migrations are skipped")
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM t"))
	assert.Equal(1, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"), "a batch that ran nothing runs no hooks")

	done1, err := m1.ToRollback(ctx, c)
	require.NoError(err)
	done2, err := m2.ToRollback(ctx, c)
	require.NoError(err)
	require.NoError(m1.RollbackMigrations(ctx, done1))
	require.NoError(m2.RollbackMigrations(ctx, done2), "unapplied migrations are skipped")
	assert.Zero(count(ctx, t, db, "SELECT COUNT(1) FROM t"))
	assert.Equal(2, count(ctx, t, db, "SELECT COUNT(1) FROM hook_runs"))

	entries, err := m1.GetMigrationLog(ctx, schema.WithMigrationId("m1"))
	require.NoError(err)
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.Operation)
	}
	assert.Equal([]string{"apply", "rollback"}, ops)
}

func TestManager_CircularDependency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _, _ := setup(ctx, t)
	c := collection(ctx, t,
		def{id: "a", load: steps([]string{"b"}, "SELECT 1", "")},
		def{id: "b", load: steps([]string{"a"}, "SELECT 1", "")},
	)
	_, err := m.ToApply(ctx, c)
	require.Error(t, err)
	assert.True(t, errors.Match(errors.T(errors.CircularDependency), err))
	assert.True(t, errors.IsBadMigration(err))
}
