// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/hashicorp/strata/internal/errors"
)

// Collection is an ordered set of migrations keyed by id.  No two members
// share an id.  Post-apply hooks are carried alongside the members and are
// not checked against them.
//
// Filtering, slicing and sorting return new collections.
type Collection struct {
	items     []*Migration
	keys      map[string]*Migration
	postApply []*Migration
}

// CollectionOption configures a new Collection.
type CollectionOption func(*Collection)

// WithPostApplyHooks sets the collection's post-apply hooks.
func WithPostApplyHooks(hooks ...*Migration) CollectionOption {
	return func(c *Collection) {
		c.postApply = slices.Clone(hooks)
	}
}

// NewCollection returns a collection holding ms in order.  A repeated id is a
// MigrationConflict.
func NewCollection(ms []*Migration, opt ...CollectionOption) (*Collection, error) {
	const op = "migration.NewCollection"
	c := &Collection{keys: make(map[string]*Migration, len(ms))}
	for _, o := range opt {
		o(c)
	}
	if err := c.SetSlice(0, 0, ms); err != nil {
		return nil, errors.Wrap(context.TODO(), err, op)
	}
	return c, nil
}

// Len returns the number of members.
func (c *Collection) Len() int { return len(c.items) }

// At returns the member at index i.
func (c *Collection) At(i int) *Migration { return c.items[i] }

// Items returns a copy of the members in order.
func (c *Collection) Items() []*Migration { return slices.Clone(c.items) }

// All iterates over the members in order.
func (c *Collection) All() iter.Seq2[int, *Migration] {
	return slices.All(c.items)
}

// Ids returns the member ids in order.
func (c *Collection) Ids() []string {
	ids := make([]string, 0, len(c.items))
	for _, m := range c.items {
		ids = append(ids, m.id)
	}
	return ids
}

// Contains reports whether a member has the given id.
func (c *Collection) Contains(id string) bool {
	_, ok := c.keys[id]
	return ok
}

// Get returns the member with the given id.
func (c *Collection) Get(id string) (*Migration, bool) {
	m, ok := c.keys[id]
	return m, ok
}

// PostApply returns the post-apply hooks.
func (c *Collection) PostApply() []*Migration { return slices.Clone(c.postApply) }

// AddPostApply appends a post-apply hook.
func (c *Collection) AddPostApply(m *Migration) {
	c.postApply = append(c.postApply, m)
}

// Append adds m after the last member.
func (c *Collection) Append(m *Migration) error {
	return c.SetSlice(len(c.items), len(c.items), []*Migration{m})
}

// Insert adds m at index i.
func (c *Collection) Insert(i int, m *Migration) error {
	return c.SetSlice(i, i, []*Migration{m})
}

// Set replaces the member at index i with m.  m may carry the id of the
// member it replaces.
func (c *Collection) Set(i int, m *Migration) error {
	return c.SetSlice(i, i+1, []*Migration{m})
}

// SetSlice replaces the members in [i, j) with ms.  The collection is left
// unchanged when the result would hold a duplicate id.
func (c *Collection) SetSlice(i, j int, ms []*Migration) error {
	const op = "migration.(Collection).SetSlice"
	if i < 0 || j < i || j > len(c.items) {
		return errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("invalid range [%d:%d] for collection of %d", i, j, len(c.items)))
	}
	if c.keys == nil {
		c.keys = make(map[string]*Migration, len(ms))
	}
	removed := make(map[string]bool, j-i)
	for _, m := range c.items[i:j] {
		removed[m.id] = true
	}
	added := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m == nil {
			return errors.New(context.TODO(), errors.InvalidParameter, op, "missing migration")
		}
		_, present := c.keys[m.id]
		if added[m.id] || (present && !removed[m.id]) {
			return errors.New(context.TODO(), errors.MigrationConflict, op, fmt.Sprintf("migration %q is already in the collection", m.id))
		}
		added[m.id] = true
	}
	for id := range removed {
		delete(c.keys, id)
	}
	for _, m := range ms {
		c.keys[m.id] = m
	}
	c.items = slices.Replace(c.items, i, j, ms...)
	return nil
}

// Remove deletes the member with the given id and reports whether it was
// present.
func (c *Collection) Remove(id string) bool {
	if _, ok := c.keys[id]; !ok {
		return false
	}
	delete(c.keys, id)
	c.items = slices.DeleteFunc(c.items, func(m *Migration) bool { return m.id == id })
	return true
}

// Slice returns a new collection holding the members in [i, j).  The
// bounds are clamped to the collection.
func (c *Collection) Slice(i, j int) *Collection {
	i = max(0, min(i, len(c.items)))
	j = max(i, min(j, len(c.items)))
	return c.derive(c.items[i:j])
}

// Filter returns a new collection holding the members for which keep returns
// true.
func (c *Collection) Filter(keep func(*Migration) bool) *Collection {
	var kept []*Migration
	for _, m := range c.items {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	return c.derive(kept)
}

// Replace returns a new collection holding ms and the same post-apply hooks.
func (c *Collection) Replace(ms []*Migration) (*Collection, error) {
	return NewCollection(ms, WithPostApplyHooks(c.postApply...))
}

// Reversed returns a new collection with the members in reverse order.
func (c *Collection) Reversed() *Collection {
	items := slices.Clone(c.items)
	slices.Reverse(items)
	return c.derive(items)
}

// Sorted returns a new collection in dependency order.
func (c *Collection) Sorted(ctx context.Context) (*Collection, error) {
	sorted, err := TopologicalSort(ctx, c.items)
	if err != nil {
		return nil, err
	}
	return c.derive(sorted), nil
}

// WithAncestors returns a new collection holding the member with the given id
// and every member it transitively depends on, in collection order.
func (c *Collection) WithAncestors(ctx context.Context, id string) (*Collection, error) {
	return c.closure(ctx, id, Ancestors)
}

// WithDescendants returns a new collection holding the member with the given
// id and every member that transitively depends on it, in collection order.
func (c *Collection) WithDescendants(ctx context.Context, id string) (*Collection, error) {
	return c.closure(ctx, id, Descendants)
}

func (c *Collection) closure(ctx context.Context, id string, walk func(context.Context, *Migration, []*Migration) ([]*Migration, error)) (*Collection, error) {
	const op = "migration.(Collection).closure"
	target, ok := c.keys[id]
	if !ok {
		return nil, errors.New(ctx, errors.InvalidParameter, op, fmt.Sprintf("unknown migration %q", id))
	}
	related, err := walk(ctx, target, c.items)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	want := map[*Migration]bool{target: true}
	for _, m := range related {
		want[m] = true
	}
	return c.Filter(func(m *Migration) bool { return want[m] }), nil
}

// Heads returns the members no other member depends on.
func (c *Collection) Heads(ctx context.Context) ([]*Migration, error) {
	dependedOn := map[*Migration]bool{}
	for _, m := range c.items {
		deps, err := m.Depends(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			dependedOn[d] = true
		}
	}
	var heads []*Migration
	for _, m := range c.items {
		if !dependedOn[m] {
			heads = append(heads, m)
		}
	}
	return heads, nil
}

// derive builds a collection from members already known to be unique.
func (c *Collection) derive(items []*Migration) *Collection {
	n := &Collection{
		items:     slices.Clone(items),
		keys:      make(map[string]*Migration, len(items)),
		postApply: slices.Clone(c.postApply),
	}
	for _, m := range n.items {
		n.keys[m.id] = m
	}
	return n
}
