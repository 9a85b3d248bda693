// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/strata/internal/errors"
)

// TopologicalSort orders ms so every migration follows the migrations it
// depends on.  Only migrations with a dependency edge to another member of ms
// are reordered; the rest keep their relative order and follow the sorted
// ones.
//
// Ready migrations are kept on a stack.  It is seeded with the migrations
// that have no dependencies in ms, in reverse input order, so the first of
// them is taken first; dependents are pushed as they become ready, in input
// order, and so the most recently readied migration runs next.  The result
// depends only on the input order.
//
// A migration that fails to load is treated as having no dependencies here;
// applying it reports the load failure.  A dependency cycle is a
// CircularDependency error naming the migrations involved.
func TopologicalSort(ctx context.Context, ms []*Migration) ([]*Migration, error) {
	const op = "migration.TopologicalSort"
	position := make(map[*Migration]int, len(ms))
	for i, m := range ms {
		if _, ok := position[m]; !ok {
			position[m] = i
		}
	}

	forward := map[*Migration][]*Migration{}
	incoming := map[*Migration]int{}
	inGraph := map[*Migration]bool{}
	for _, m := range ms {
		deps, err := m.Depends(ctx)
		if err != nil {
			hclog.FromContext(ctx).Debug("sorting migration without dependencies", "migration", m.id, "error", err)
			continue
		}
		for _, d := range deps {
			if _, ok := position[d]; !ok {
				continue
			}
			if slices.Contains(forward[d], m) {
				continue
			}
			forward[d] = append(forward[d], m)
			incoming[m]++
			inGraph[d], inGraph[m] = true, true
		}
	}

	byPosition := func(a, b *Migration) int { return position[a] - position[b] }

	var ready []*Migration
	for _, m := range ms {
		if inGraph[m] && incoming[m] == 0 && !slices.Contains(ready, m) {
			ready = append(ready, m)
		}
	}
	slices.Reverse(ready)

	sorted := make([]*Migration, 0, len(ms))
	for len(ready) > 0 {
		n := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		sorted = append(sorted, n)
		for _, m := range forward[n] {
			incoming[m]--
			if incoming[m] == 0 {
				ready = append(ready, m)
			}
		}
		delete(forward, n)
	}

	if len(forward) > 0 {
		var cyclic []*Migration
		for m := range inGraph {
			if incoming[m] > 0 || len(forward[m]) > 0 {
				cyclic = append(cyclic, m)
			}
		}
		slices.SortFunc(cyclic, byPosition)
		ids := make([]string, 0, len(cyclic))
		for _, m := range cyclic {
			ids = append(ids, m.id)
		}
		return nil, errors.New(ctx, errors.CircularDependency, op,
			fmt.Sprintf("circular dependencies among these migrations: %s", strings.Join(ids, ", ")))
	}

	seen := make(map[*Migration]bool, len(ms))
	for _, m := range sorted {
		seen[m] = true
	}
	for _, m := range ms {
		if !inGraph[m] && !seen[m] {
			sorted = append(sorted, m)
			seen[m] = true
		}
	}
	return sorted, nil
}

// Ancestors returns the members of within that m transitively depends on.
// The result is in the order the dependency graph is walked, breadth first.
func Ancestors(ctx context.Context, m *Migration, within []*Migration) ([]*Migration, error) {
	member := make(map[*Migration]bool, len(within))
	for _, w := range within {
		member[w] = true
	}
	return walk(m, func(n *Migration) ([]*Migration, error) {
		deps, err := n.Depends(ctx)
		if err != nil {
			return nil, err
		}
		return slices.DeleteFunc(deps, func(d *Migration) bool { return !member[d] }), nil
	})
}

// Descendants returns the members of within that transitively depend on m.
func Descendants(ctx context.Context, m *Migration, within []*Migration) ([]*Migration, error) {
	dependents := map[*Migration][]*Migration{}
	for _, w := range within {
		deps, err := w.Depends(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			dependents[d] = append(dependents[d], w)
		}
	}
	return walk(m, func(n *Migration) ([]*Migration, error) {
		return dependents[n], nil
	})
}

func walk(start *Migration, next func(*Migration) ([]*Migration, error)) ([]*Migration, error) {
	seen := map[*Migration]bool{start: true}
	queue := []*Migration{start}
	var out []*Migration
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		adjacent, err := next(n)
		if err != nil {
			return nil, err
		}
		for _, a := range adjacent {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
			queue = append(queue, a)
		}
	}
	return out, nil
}
