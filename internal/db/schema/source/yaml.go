// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
	"gopkg.in/yaml.v3"
)

// yamlMigration is the document layout of a .yaml migration:
//
//	depends: [0001.create-users]
//	transactional: true
//	steps:
//	  - apply: CREATE TABLE t (id INT)
//	    rollback: DROP TABLE t
//	    ignore_errors: apply
//	  - transaction:
//	      ignore_errors: all
//	      steps:
//	        - apply: INSERT INTO t VALUES (1)
//	          rollback: DELETE FROM t WHERE id = 1
type yamlMigration struct {
	Depends       idList     `yaml:"depends"`
	Transactional *bool      `yaml:"transactional"`
	Steps         []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Apply        string           `yaml:"apply"`
	Rollback     string           `yaml:"rollback"`
	IgnoreErrors string           `yaml:"ignore_errors"`
	Transaction  *yamlTransaction `yaml:"transaction"`
}

type yamlTransaction struct {
	IgnoreErrors string     `yaml:"ignore_errors"`
	Steps        []yamlStep `yaml:"steps"`
}

// idList accepts either a sequence of ids or a single whitespace separated
// string.
type idList []string

func (l *idList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = strings.Fields(value.Value)
		return nil
	}
	var ids []string
	if err := value.Decode(&ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

func parseYaml(body []byte) (*yamlMigration, error) {
	const op = "source.parseYaml"
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	var doc yamlMigration
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, errors.Wrap(context.TODO(), err, op, errors.WithCode(errors.InvalidParameter), errors.WithMsg("invalid yaml migration"))
	}
	return &doc, nil
}

func yamlLoader(body []byte) migration.LoadFunc {
	return func(b *migration.Builder) error {
		const op = "source.yamlLoader"
		doc, err := parseYaml(body)
		if err != nil {
			return err
		}
		b.Depends(doc.Depends...)
		if doc.Transactional != nil && !*doc.Transactional {
			b.NonTransactional()
		}
		for i, s := range doc.Steps {
			if s.Transaction != nil {
				if s.Apply != "" || s.Rollback != "" || s.IgnoreErrors != "" {
					return errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("step %d: a transaction cannot also declare apply, rollback or ignore_errors", i))
				}
				ignore, err := migration.ParseIgnoreErrors(s.Transaction.IgnoreErrors)
				if err != nil {
					return err
				}
				var steps []*migration.Transaction
				for j, inner := range s.Transaction.Steps {
					if inner.Transaction != nil {
						return errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("step %d.%d: transactions cannot be nested", i, j))
					}
					t, err := yamlStepOf(b, inner)
					if err != nil {
						return err
					}
					steps = append(steps, t)
				}
				b.Transaction(steps, migration.WithIgnoreErrors(ignore))
				continue
			}
			if _, err := yamlStepOf(b, s); err != nil {
				return err
			}
		}
		return nil
	}
}

func yamlStepOf(b *migration.Builder, s yamlStep) (*migration.Transaction, error) {
	const op = "source.yamlStepOf"
	if strings.TrimSpace(s.Apply) == "" {
		return nil, errors.New(context.TODO(), errors.InvalidParameter, op, "step is missing apply")
	}
	ignore, err := migration.ParseIgnoreErrors(s.IgnoreErrors)
	if err != nil {
		return nil, err
	}
	var rollback migration.Action
	if strings.TrimSpace(s.Rollback) != "" {
		rollback = migration.Statement(s.Rollback)
	}
	return b.Step(migration.Statement(s.Apply), rollback, migration.WithIgnoreErrors(ignore)), nil
}
