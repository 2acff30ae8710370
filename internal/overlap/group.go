package overlap

import (
	"sort"
	"strings"

	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/yourbasic/graph"
)

// Group is a set of unique constraints that all share at least one column
// with the first member, the anchor.
type Group struct {
	Constraints []models.UniqueConstraint
}

// Anchor returns the constraint the group was formed around
func (g Group) Anchor() models.UniqueConstraint {
	return g.Constraints[0]
}

// Names returns the member constraint names in group order
func (g Group) Names() []string {
	names := make([]string, len(g.Constraints))
	for i, c := range g.Constraints {
		names[i] = c.Name
	}
	return names
}

// overlapGraph has one vertex per constraint and an undirected edge between
// every pair of constraints with a common column.
func overlapGraph(constraints []models.UniqueConstraint) *graph.Immutable {
	g := graph.New(len(constraints))
	for i := range constraints {
		for j := i + 1; j < len(constraints); j++ {
			if constraints[i].Overlaps(constraints[j]) {
				g.AddBoth(i, j)
			}
		}
	}
	// Immutable graphs visit neighbours in ascending order, which keeps
	// group membership ordered like the input.
	return graph.Sort(g)
}

// candidateGroups forms one candidate per constraint: the constraint plus its
// direct neighbours. Overlaps that only exist through a third constraint are
// not followed. Singletons are dropped and candidates with the same member
// names are reported once.
func candidateGroups(constraints []models.UniqueConstraint) []Group {
	if len(constraints) < 2 {
		return nil
	}

	g := overlapGraph(constraints)
	seen := make(map[string]bool)
	var groups []Group

	for v := range constraints {
		members := []int{v}
		g.Visit(v, func(w int, _ int64) bool {
			members = append(members, w)
			return false
		})
		if len(members) < 2 {
			continue
		}

		group := Group{Constraints: make([]models.UniqueConstraint, len(members))}
		for i, m := range members {
			group.Constraints[i] = constraints[m]
		}

		key := memberKey(group)
		if seen[key] {
			continue
		}
		seen[key] = true
		groups = append(groups, group)
	}

	return groups
}

// DetectGroups returns the overlap groups of a table whose members have a
// non-empty common column set, in discovery order.
func DetectGroups(constraints []models.UniqueConstraint) []Group {
	var groups []Group
	for _, g := range candidateGroups(constraints) {
		if len(SharedColumns(g)) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// Components returns the connected components of the overlap graph with at
// least two members. Used for reporting only; planning resolves one anchored
// group per table.
func Components(constraints []models.UniqueConstraint) [][]string {
	if len(constraints) < 2 {
		return nil
	}

	var out [][]string
	for _, comp := range graph.Components(overlapGraph(constraints)) {
		if len(comp) < 2 {
			continue
		}
		sort.Ints(comp)
		names := make([]string, len(comp))
		for i, v := range comp {
			names[i] = constraints[v].Name
		}
		out = append(out, names)
	}

	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func memberKey(g Group) string {
	names := g.Names()
	sort.Strings(names)
	return strings.Join(names, "\x1f")
}

// SharedColumns returns the columns common to every member of the group, in
// the anchor's column order.
func SharedColumns(g Group) []string {
	if len(g.Constraints) == 0 {
		return nil
	}

	var shared []string
	for _, col := range g.Anchor().Columns {
		inAll := true
		for _, c := range g.Constraints[1:] {
			if !c.HasColumn(col) {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, col)
		}
	}
	return shared
}

// NonShared returns the constraint's columns that are not in shared, in
// constraint order.
func NonShared(c models.UniqueConstraint, shared []string) []string {
	var out []string
	for _, col := range c.Columns {
		isShared := false
		for _, s := range shared {
			if s == col {
				isShared = true
				break
			}
		}
		if !isShared {
			out = append(out, col)
		}
	}
	return out
}
