// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*migration.Builder) error { return nil }

func named(id string) *migration.Migration {
	return migration.New(id, "test", noop)
}

func TestNewCollection(t *testing.T) {
	t.Parallel()
	t.Run("unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := migration.NewCollection([]*migration.Migration{named("a"), named("b")})
		require.NoError(err)
		assert.Equal(2, c.Len())
		assert.Equal([]string{"a", "b"}, c.Ids())
		assert.True(c.Contains("a"))
		assert.False(c.Contains("z"))
	})
	t.Run("duplicate", func(t *testing.T) {
		_, err := migration.NewCollection([]*migration.Migration{named("a"), named("a")})
		require.Error(t, err)
		assert.True(t, errors.IsMigrationConflict(err))
	})
}

func TestCollection_DuplicateRejection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		op   func(c *migration.Collection) error
	}{
		{
			name: "append",
			op:   func(c *migration.Collection) error { return c.Append(named("b")) },
		},
		{
			name: "insert",
			op:   func(c *migration.Collection) error { return c.Insert(0, named("c")) },
		},
		{
			name: "set-other-index",
			op:   func(c *migration.Collection) error { return c.Set(0, named("b")) },
		},
		{
			name: "slice-assign",
			op: func(c *migration.Collection) error {
				return c.SetSlice(0, 1, []*migration.Migration{named("x"), named("c")})
			},
		},
		{
			name: "slice-assign-duplicates-within",
			op: func(c *migration.Collection) error {
				return c.SetSlice(0, 3, []*migration.Migration{named("x"), named("x")})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			c, err := migration.NewCollection([]*migration.Migration{named("a"), named("b"), named("c")})
			require.NoError(err)
			err = tt.op(c)
			require.Error(err)
			assert.True(errors.IsMigrationConflict(err))
			assert.Equal([]string{"a", "b", "c"}, c.Ids(), "collection must be unchanged")
		})
	}
}

func TestCollection_ReplaceInPlace(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := migration.NewCollection([]*migration.Migration{named("a"), named("b")})
	require.NoError(err)

	replacement := named("b")
	require.NoError(c.Set(1, replacement))
	assert.Same(replacement, c.At(1))

	require.NoError(c.SetSlice(0, 2, []*migration.Migration{named("b"), named("a")}))
	assert.Equal([]string{"b", "a"}, c.Ids())

	assert.True(c.Remove("a"))
	assert.False(c.Remove("a"))
	assert.False(c.Contains("a"))
	require.NoError(c.Append(named("a")))
	assert.Equal([]string{"b", "a"}, c.Ids())
}

func TestCollection_InvalidRange(t *testing.T) {
	t.Parallel()
	c, err := migration.NewCollection([]*migration.Migration{named("a")})
	require.NoError(t, err)
	err = c.SetSlice(1, 3, nil)
	require.Error(t, err)
	assert.True(t, errors.Match(errors.T(errors.InvalidParameter), err))
}

func TestCollection_DerivedCollections(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	hook := named("post-apply")
	c, err := migration.NewCollection(
		[]*migration.Migration{named("a1"), named("b1"), named("a2")},
		migration.WithPostApplyHooks(hook),
	)
	require.NoError(err)

	filtered := c.Filter(func(m *migration.Migration) bool { return strings.HasPrefix(m.Id(), "a") })
	assert.Equal([]string{"a1", "a2"}, filtered.Ids())
	assert.Equal([]*migration.Migration{hook}, filtered.PostApply())

	assert.Equal([]string{"b1", "a2"}, c.Slice(1, 3).Ids())
	assert.Equal([]string{"a2"}, c.Slice(2, 99).Ids())
	assert.Empty(c.Slice(5, 9).Ids())
	assert.Equal([]string{"a2", "b1", "a1"}, c.Reversed().Ids())

	replaced, err := c.Replace([]*migration.Migration{named("z")})
	require.NoError(err)
	assert.Equal([]string{"z"}, replaced.Ids())
	assert.Equal([]*migration.Migration{hook}, replaced.PostApply())

	// derived collections never alter the original
	require.NoError(filtered.Append(named("b1")))
	assert.Equal([]string{"a1", "b1", "a2"}, c.Ids())
	assert.Len(c.PostApply(), 1)

	var seen []string
	for i, m := range c.All() {
		assert.Same(c.At(i), m)
		seen = append(seen, m.Id())
	}
	assert.Equal(c.Ids(), seen)
}

func TestCollection_Targeting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := map[string][]string{
		"b": {"a"},
		"c": {"b"},
		"d": {"a"},
	}
	ms := graph(t, []string{"a", "b", "c", "d", "e"}, deps)
	c, err := migration.NewCollection(ms)
	require.NoError(t, err)

	up, err := c.WithAncestors(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, up.Ids())

	down, err := c.WithDescendants(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, down.Ids())

	down, err = c.WithDescendants(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, down.Ids())

	_, err = c.WithAncestors(ctx, "nope")
	require.Error(t, err)
	assert.True(t, errors.Match(errors.T(errors.InvalidParameter), err))

	heads, err := c.Heads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, ids(heads))
}

func TestCollection_Sorted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ms := graph(t, []string{"m2", "m1"}, map[string][]string{"m2": {"m1"}})
	c, err := migration.NewCollection(ms)
	require.NoError(t, err)
	sorted, err := c.Sorted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, sorted.Ids())
	assert.Equal(t, []string{"m2", "m1"}, c.Ids())
}

func TestRegistry_Conflict(t *testing.T) {
	t.Parallel()
	reg := migration.NewRegistry()
	m := named("a")
	require.NoError(t, reg.Add(m))
	require.NoError(t, reg.Add(m), "re-adding the same migration is allowed")
	err := reg.Add(named("a"))
	require.Error(t, err)
	assert.True(t, errors.IsMigrationConflict(err))
	assert.Equal(t, 1, reg.Len())
	got, ok := reg.Get("a")
	assert.True(t, ok)
	assert.Same(t, m, got)
}
