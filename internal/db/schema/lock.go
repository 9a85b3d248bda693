// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/errors"
)

// LockState describes the migration lock row.
type LockState struct {
	Held  bool
	Pid   int
	Since time.Time
}

// Lock takes the migration lock, waiting up to the Manager's lock timeout.
// Batch operations take the lock themselves; Lock lets a caller hold it
// across several of them.  Each Lock needs a matching Unlock.
func (m *Manager) Lock(ctx context.Context) error {
	const op = "schema.(Manager).Lock"
	ctx = m.context(ctx)
	if err := m.backend.Lock(ctx, m.lockTimeout); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// Unlock releases a lock taken by Lock.
func (m *Manager) Unlock(ctx context.Context) error {
	const op = "schema.(Manager).Unlock"
	ctx = m.context(ctx)
	if err := m.backend.Unlock(ctx); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// BreakLock removes the migration lock regardless of which process holds
// it.  Use it only when the holder is known to have died.
func (m *Manager) BreakLock(ctx context.Context) error {
	const op = "schema.(Manager).BreakLock"
	ctx = m.context(ctx)
	if st, err := m.LockState(ctx); err == nil && st.Held {
		hclog.FromContext(ctx).Warn("breaking migration lock", "pid", st.Pid, "since", st.Since)
	}
	if err := m.backend.BreakLock(ctx); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// LockState reports who holds the migration lock.
func (m *Manager) LockState(ctx context.Context) (LockState, error) {
	const op = "schema.(Manager).LockState"
	pid, since, held, err := m.backend.LockStatus(m.context(ctx))
	if err != nil {
		return LockState{}, errors.Wrap(ctx, err, op)
	}
	return LockState{Held: held, Pid: pid, Since: since}, nil
}

// withLock runs fn while holding the migration lock.
func (m *Manager) withLock(ctx context.Context, op errors.Op, fn func(context.Context) error) (retErr error) {
	if err := m.backend.Lock(ctx, m.lockTimeout); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	defer func() {
		if err := m.backend.Unlock(ctx); err != nil {
			if retErr == nil {
				retErr = errors.Wrap(ctx, err, op)
				return
			}
			hclog.FromContext(ctx).Error("could not release migration lock", "error", err)
		}
	}()
	if err := fn(ctx); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}
