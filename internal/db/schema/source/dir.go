// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

const (
	sqlExt      = ".sql"
	rollbackExt = ".rollback.sql"
	yamlExt     = ".yaml"
	ymlExt      = ".yml"

	postApplyPrefix = "post-apply"
)

// Dir reads the migration files at the top level of a directory.  The file
// name without its extension is the migration id:
//
//   - <id>.sql holds the statements to apply
//   - <id>.rollback.sql holds the statements that undo <id>.sql
//   - <id>.yaml or <id>.yml holds a declarative migration
//
// Files whose name starts with post-apply are post apply hooks.  Other files
// are ignored.
type Dir struct {
	fsys fs.FS
	name string
}

var _ Source = (*Dir)(nil)

// NewDir returns a source reading the directory at path.
func NewDir(path string) *Dir {
	return &Dir{fsys: os.DirFS(path), name: path}
}

// NewFS returns a source reading the root of fsys, for example an embed.FS.
// name describes fsys in messages.
func NewFS(fsys fs.FS, name string) *Dir {
	return &Dir{fsys: fsys, name: name}
}

// Definitions lists the migrations in the directory ordered by file name.
func (d *Dir) Definitions(ctx context.Context) ([]Definition, error) {
	const op = "source.(Dir).Definitions"
	entries, err := fs.ReadDir(d.fsys, ".")
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io), errors.WithMsg("could not read migrations from %s", d.name))
	}
	logger := hclog.FromContext(ctx)

	files := map[string]bool{}
	for _, e := range entries {
		if !e.IsDir() {
			files[e.Name()] = true
		}
	}

	var defs []Definition
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case strings.HasSuffix(name, rollbackExt):
			id := strings.TrimSuffix(name, rollbackExt)
			if !files[id+sqlExt] {
				defs = append(defs, d.definition(id, name, orphanRollback(name)))
			}
		case strings.HasSuffix(name, sqlExt):
			id := strings.TrimSuffix(name, sqlExt)
			rollback := ""
			if files[id+rollbackExt] {
				rollback = id + rollbackExt
			}
			defs = append(defs, d.definition(id, name, d.sqlFile(name, rollback)))
		case strings.HasSuffix(name, yamlExt), strings.HasSuffix(name, ymlExt):
			id := strings.TrimSuffix(name, path.Ext(name))
			defs = append(defs, d.definition(id, name, d.yamlFile(name)))
		default:
			logger.Trace("ignoring file", "file", d.path(name))
		}
	}
	return defs, nil
}

func (d *Dir) definition(id, name string, load migration.LoadFunc) Definition {
	return Definition{
		Id:        id,
		Source:    d.path(name),
		PostApply: strings.HasPrefix(name, postApplyPrefix),
		Load:      load,
	}
}

func (d *Dir) path(name string) string {
	return filepath.Join(d.name, name)
}

func (d *Dir) read(name string) (string, error) {
	const op = "source.(Dir).read"
	body, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return "", errors.Wrap(context.TODO(), err, op, errors.WithCode(errors.Io))
	}
	return string(body), nil
}

func (d *Dir) sqlFile(name, rollbackName string) migration.LoadFunc {
	return func(b *migration.Builder) error {
		apply, err := d.read(name)
		if err != nil {
			return err
		}
		var rollback string
		if rollbackName != "" {
			if rollback, err = d.read(rollbackName); err != nil {
				return err
			}
		}
		return sqlLoader(apply, rollback)(b)
	}
}

func (d *Dir) yamlFile(name string) migration.LoadFunc {
	return func(b *migration.Builder) error {
		body, err := d.read(name)
		if err != nil {
			return err
		}
		return yamlLoader([]byte(body))(b)
	}
}

func orphanRollback(name string) migration.LoadFunc {
	return func(*migration.Builder) error {
		const op = "source.orphanRollback"
		return errors.New(context.TODO(), errors.BadMigration, op, fmt.Sprintf("rollback file %s has no matching %s file", name, sqlExt))
	}
}
