// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"github.com/hashicorp/strata/internal/errors"
)

var errProbeRollback = errors.New(context.Background(), errors.Unknown, "backend.probe", "rolling back probe")

// HasTransactionalDDL reports whether schema changes made in a transaction
// are undone when it rolls back.  The engine is probed once: a scratch table
// is created in a transaction that is then rolled back, and dropping the
// table afterwards only succeeds if the CREATE survived the rollback.
func (b *Backend) HasTransactionalDDL(ctx context.Context) (bool, error) {
	const op = "backend.(Backend).HasTransactionalDDL"
	if b.transactionalDDL != nil {
		return *b.transactionalDDL, nil
	}
	if b.tx != nil {
		return false, errors.New(ctx, errors.TransactionState, op, "cannot probe inside a transaction")
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return false, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	table := b.quote("_strata_tmp_" + strings.ReplaceAll(id, "-", "")[:12])

	err = b.Transaction(ctx, func(ctx context.Context) error {
		if _, err := b.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (id INT)", table)); err != nil {
			return err
		}
		return errProbeRollback
	})
	if err != errProbeRollback {
		return false, errors.Wrap(ctx, err, op)
	}

	_, err = b.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", table))
	transactional := err != nil
	hclog.FromContext(ctx).Debug("probed transactional ddl", "dialect", b.dialect.Name(), "transactional", transactional)
	b.transactionalDDL = &transactional
	return transactional, nil
}
