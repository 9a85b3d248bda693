// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/db/schema/source"
	"github.com/hashicorp/strata/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// actions flattens the step groups of m into "apply|rollback" pairs, one
// slice per group.
func actions(ctx context.Context, t *testing.T, m *migration.Migration) [][]string {
	t.Helper()
	groups, err := m.Steps(ctx)
	require.NoError(t, err)
	str := func(a migration.Action) string {
		if a == nil {
			return ""
		}
		return a.String()
	}
	var got [][]string
	for _, g := range groups {
		var pairs []string
		for _, s := range g.Steps {
			pairs = append(pairs, str(s.Apply)+"|"+str(s.Rollback))
		}
		got = append(got, pairs)
	}
	return got
}

func readFS(ctx context.Context, t *testing.T, fsys fstest.MapFS) *migration.Collection {
	t.Helper()
	c, err := source.Read(ctx, []source.Source{source.NewFS(fsys, "migrations")})
	require.NoError(t, err)
	return c
}

func TestDir_Definitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	fsys := fstest.MapFS{
		"0002.groups.sql":          {Data: []byte("-- depends: 0001.users\nCREATE TABLE groups (id INT);")},
		"0001.users.sql":           {Data: []byte("CREATE TABLE users (id INT);\nCREATE INDEX users_id ON users (id);")},
		"0001.users.rollback.sql":  {Data: []byte("DROP INDEX users_id;\nDROP TABLE users;")},
		"0003.seed.yaml":           {Data: []byte("depends: 0002.groups\nsteps:\n  - apply: INSERT INTO groups VALUES (1)\n")},
		"0004.orphan.rollback.sql": {Data: []byte("DROP TABLE nothing;")},
		"post-apply.sql":           {Data: []byte("ANALYZE;")},
		"README.md":                {Data: []byte("not a migration")},
		".hidden.sql":              {Data: []byte("SELECT 1;")},
		"nested/0005.skip.sql":     {Data: []byte("SELECT 1;")},
	}

	defs, err := source.NewFS(fsys, "migrations").Definitions(ctx)
	require.NoError(err)
	var ids []string
	for _, d := range defs {
		ids = append(ids, d.Id)
		assert.NotNil(d.Load)
	}
	assert.Equal([]string{"0001.users", "0002.groups", "0003.seed", "0004.orphan", "post-apply"}, ids)
	assert.Equal(filepath.Join("migrations", "0001.users.sql"), defs[0].Source)
	assert.True(defs[4].PostApply)
	assert.False(defs[0].PostApply)

	c := readFS(ctx, t, fsys)
	assert.Equal([]string{"0001.users", "0002.groups", "0003.seed", "0004.orphan"}, c.Ids())
	require.Len(c.PostApply(), 1)
	assert.Equal("post-apply", c.PostApply()[0].Id())

	users, _ := c.Get("0001.users")
	assert.Equal([][]string{{
		"CREATE TABLE users (id INT)|",
		"CREATE INDEX users_id ON users (id)|",
		"|DROP TABLE users",
		"|DROP INDEX users_id",
	}}, actions(ctx, t, users))

	groups, _ := c.Get("0002.groups")
	deps, err := groups.DependencyIds(ctx)
	require.NoError(err)
	assert.Equal([]string{"0001.users"}, deps)

	seed, _ := c.Get("0003.seed")
	assert.Equal([][]string{{"INSERT INTO groups VALUES (1)|"}}, actions(ctx, t, seed))

	orphan, _ := c.Get("0004.orphan")
	err = orphan.Load(ctx)
	require.Error(err)
	assert.True(errors.IsBadMigration(err))
	assert.Contains(err.Error(), "0004.orphan.rollback.sql")
}

func TestDir_NonTransactional(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := readFS(ctx, t, fstest.MapFS{
		"0001.index.sql":          {Data: []byte("-- transactional: false\nCREATE INDEX CONCURRENTLY a ON t (a);\nCREATE INDEX CONCURRENTLY b ON t (b);")},
		"0001.index.rollback.sql": {Data: []byte("DROP INDEX a;")},
	})
	m, ok := c.Get("0001.index")
	require.True(t, ok)
	transactional, err := m.IsTransactional(ctx)
	require.NoError(t, err)
	assert.False(t, transactional)
	assert.Equal(t, [][]string{
		{"CREATE INDEX CONCURRENTLY a ON t (a)|"},
		{"CREATE INDEX CONCURRENTLY b ON t (b)|"},
		{"|DROP INDEX a"},
	}, actions(ctx, t, m))
}

// Test that files are read when the migration is loaded, not when the
// directory is listed.
func TestDir_LazyLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "0001.a.sql")
	require.NoError(os.WriteFile(file, []byte("SELECT 1;"), 0o644))

	c, err := source.Read(ctx, []source.Source{source.NewDir(dir)})
	require.NoError(err)
	m, ok := c.Get("0001.a")
	require.True(ok)
	assert.False(m.Loaded())

	require.NoError(os.WriteFile(file, []byte("SELECT 2;"), 0o644))
	assert.Equal([][]string{{"SELECT 2|"}}, actions(ctx, t, m))
	assert.True(m.Loaded())

	c, err = source.Read(ctx, []source.Source{source.NewDir(dir)})
	require.NoError(err)
	m, _ = c.Get("0001.a")
	require.NoError(os.Remove(file))
	err = m.Load(ctx)
	require.Error(err)
	assert.True(errors.IsBadMigration(err))
}

func TestDir_Missing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := source.NewDir(filepath.Join(t.TempDir(), "missing")).Definitions(ctx)
	require.Error(t, err)
	assert.True(t, errors.Match(errors.T(errors.Io), err))
}
