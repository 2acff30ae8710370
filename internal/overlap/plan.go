package overlap

import (
	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
)

// Options tune plan construction
type Options struct {
	Pairing Pairing
	Sink    diagnostics.Sink
}

// Plan is the pre-allocated controlled-column values for one table pass
type Plan struct {
	Table     string
	Requested int
	Group     Group
	Shared    []string
	Fanout    int
	// Combinations is len(shared values) * Fanout
	Combinations int
	Rows         []models.RowAssignment
	// Distinct is the number of distinct row assignments in Rows
	Distinct int
	// Duplicates is Requested - Distinct
	Duplicates int
}

// ConstraintDuplicates reports, per member constraint, how many rows repeat
// an earlier row's tuple on that constraint's columns.
func (p *Plan) ConstraintDuplicates() map[string]int {
	out := make(map[string]int, len(p.Group.Constraints))
	for _, c := range p.Group.Constraints {
		out[c.Name] = ProjectionDuplicates(p.Rows, c.Columns)
	}
	return out
}

// BuildPlan resolves the first overlap group of a table into exactly n row
// assignments. Any returned error is a precondition failure of the
// overlapping strategy and no partial plan is returned with it.
func BuildPlan(table string, constraints []models.UniqueConstraint, provider pools.Provider, n int, opts Options) (*Plan, error) {
	sink := opts.Sink
	if sink == nil {
		sink = diagnostics.Discard
	}

	groups := candidateGroups(constraints)
	if len(groups) == 0 {
		return nil, errors.Wrapf(ErrNoOverlap, "table %s", table)
	}
	group := groups[0]

	shared := SharedColumns(group)
	if len(shared) == 0 {
		return nil, errors.Wrapf(ErrEmptySharedSet, "table %s, group %v", table, group.Names())
	}

	sink.Emit(diagnostics.Event{
		Kind:  diagnostics.GroupDiscovered,
		Table: table,
		Fields: map[string]interface{}{
			"constraints":    group.Names(),
			"shared_columns": shared,
		},
	})

	fanout, err := Fanout(group, shared, provider)
	if err != nil {
		emitPoolError(sink, table, err)
		return nil, err
	}

	combos, err := Combinations(group, shared, fanout, provider, opts.Pairing)
	if err != nil {
		emitPoolError(sink, table, err)
		return nil, err
	}

	sink.Emit(diagnostics.Event{
		Kind:  diagnostics.FanoutComputed,
		Table: table,
		Fields: map[string]interface{}{
			"fanout":        fanout,
			"shared_values": len(combos) / fanout,
			"combinations":  len(combos),
		},
	})

	reconciled, err := Reconcile(combos, n)
	if err != nil {
		emitPoolError(sink, table, err)
		return nil, err
	}

	if reconciled.Cycled() {
		sink.Emit(diagnostics.Event{
			Kind:     diagnostics.InsufficientCombinations,
			Severity: diagnostics.Warning,
			Table:    table,
			Fields: map[string]interface{}{
				"available": reconciled.Available,
				"requested": n,
			},
		})
	}

	plan := &Plan{
		Table:        table,
		Requested:    n,
		Group:        group,
		Shared:       shared,
		Fanout:       fanout,
		Combinations: len(combos),
		Rows:         reconciled.Rows,
		Distinct:     DistinctRows(reconciled.Rows),
	}
	plan.Duplicates = n - plan.Distinct

	sink.Emit(diagnostics.Event{
		Kind:  diagnostics.RowsPreallocated,
		Table: table,
		Fields: map[string]interface{}{
			"rows":                  n,
			"distinct":              plan.Distinct,
			"duplicates":            plan.Duplicates,
			"constraint_duplicates": plan.ConstraintDuplicates(),
		},
	})

	return plan, nil
}

func emitPoolError(sink diagnostics.Sink, table string, err error) {
	sink.Emit(diagnostics.Event{
		Kind:     diagnostics.PoolError,
		Severity: diagnostics.Error,
		Table:    table,
		Fields:   map[string]interface{}{"error": err.Error()},
	})
}
