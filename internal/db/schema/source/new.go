// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/go-uuid"
	"github.com/hashicorp/strata/internal/errors"
)

// NewMigrationFile creates an empty .sql migration in dir and returns its
// path.  The file is named <yyyymmdd>_<nn>_<rand>-<slug>.sql, where nn
// counts the migrations already created that day, and its header depends on
// depends.
func NewMigrationFile(ctx context.Context, dir, message string, depends []string, now time.Time) (string, error) {
	const op = "source.NewMigrationFile"
	date := now.UTC().Format("20060102")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	n := 1
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), date+"_") && strings.HasSuffix(e.Name(), sqlExt) && !strings.HasSuffix(e.Name(), rollbackExt) {
			n++
		}
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	name := fmt.Sprintf("%s_%02d_%s", date, n, id[:5])
	if s := slug(message); s != "" {
		name += "-" + s
	}
	path := filepath.Join(dir, name+sqlExt)

	var body strings.Builder
	if message != "" {
		fmt.Fprintf(&body, "-- %s\n", strings.ReplaceAll(message, "\n", " "))
	}
	fmt.Fprintf(&body, "-- depends: %s\n\n", strings.Join(depends, " "))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	if _, err := f.WriteString(body.String()); err != nil {
		_ = f.Close()
		return "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return path, nil
}

// slug lower-cases s and joins its words with dashes.
func slug(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "-")
}
