// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYaml(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name              string
		body              string
		wantDepends       []string
		wantActions       [][]string
		wantIgnore        []migration.IgnoreErrors
		wantTransactional bool
		wantErrContains   string
	}{
		{
			name:              "empty",
			body:              "",
			wantTransactional: true,
		},
		{
			name: "steps",
			body: `
depends: [0001.a, 0002.b]
steps:
  - apply: CREATE TABLE t (id INT)
    rollback: DROP TABLE t
  - apply: INSERT INTO t VALUES (1)
    ignore_errors: apply
`,
			wantDepends:       []string{"0001.a", "0002.b"},
			wantActions:       [][]string{{"CREATE TABLE t (id INT)|DROP TABLE t"}, {"INSERT INTO t VALUES (1)|"}},
			wantIgnore:        []migration.IgnoreErrors{migration.IgnoreNone, migration.IgnoreApply},
			wantTransactional: true,
		},
		{
			name: "scalar-depends-and-transaction",
			body: `
depends: 0001.a 0002.b
transactional: false
steps:
  - apply: SELECT 1
  - transaction:
      ignore_errors: all
      steps:
        - apply: INSERT INTO t VALUES (1)
          rollback: DELETE FROM t WHERE id = 1
        - apply: INSERT INTO t VALUES (2)
`,
			wantDepends: []string{"0001.a", "0002.b"},
			wantActions: [][]string{
				{"SELECT 1|"},
				{"INSERT INTO t VALUES (1)|DELETE FROM t WHERE id = 1", "INSERT INTO t VALUES (2)|"},
			},
			wantIgnore: []migration.IgnoreErrors{migration.IgnoreNone, migration.IgnoreAll},
		},
		{
			name:            "unknown-field",
			body:            "stepz: []\n",
			wantErrContains: "invalid yaml migration",
		},
		{
			name:            "missing-apply",
			body:            "steps:\n  - rollback: DROP TABLE t\n",
			wantErrContains: "step is missing apply",
		},
		{
			name:            "bad-ignore-errors",
			body:            "steps:\n  - apply: SELECT 1\n    ignore_errors: sometimes\n",
			wantErrContains: "ignore_errors must be one of",
		},
		{
			name:            "nested-transaction",
			body:            "steps:\n  - transaction:\n      steps:\n        - transaction:\n            steps: []\n",
			wantErrContains: "transactions cannot be nested",
		},
		{
			name:            "transaction-with-apply",
			body:            "steps:\n  - apply: SELECT 1\n    transaction:\n      steps: []\n",
			wantErrContains: "a transaction cannot also declare",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			c := readFS(ctx, t, fstest.MapFS{
				"0001.a.sql":   {Data: []byte("SELECT 1;")},
				"0002.b.sql":   {Data: []byte("SELECT 1;")},
				"0003.doc.yml": {Data: []byte(tt.body)},
			})
			m, ok := c.Get("0003.doc")
			require.True(ok)
			if tt.wantErrContains != "" {
				err := m.Load(ctx)
				require.Error(err)
				assert.True(errors.IsBadMigration(err))
				assert.Contains(err.Error(), tt.wantErrContains)
				return
			}
			deps, err := m.DependencyIds(ctx)
			require.NoError(err)
			assert.Equal(tt.wantDepends, deps)
			transactional, err := m.IsTransactional(ctx)
			require.NoError(err)
			assert.Equal(tt.wantTransactional, transactional)
			assert.Equal(tt.wantActions, actions(ctx, t, m))

			groups, err := m.Steps(ctx)
			require.NoError(err)
			var ignore []migration.IgnoreErrors
			for _, g := range groups {
				ignore = append(ignore, g.IgnoreErrors)
			}
			assert.Equal(tt.wantIgnore, ignore)
		})
	}
}
