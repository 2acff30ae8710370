// Package strategy picks how the controlled columns of a table are filled.
//
// Strategies are tried in a fixed precedence: overlapping unique constraints,
// then the single constraint with the smallest Cartesian product, then random
// assignment. The first strategy whose preconditions hold produces the whole
// plan; plans are never blended.
package strategy

import (
	"fmt"

	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
)

// State of the precedence state machine
type State int

const (
	TryOverlapping State = iota
	TryTightestSingle
	RandomAssignment
	Done
)

func (s State) String() string {
	switch s {
	case TryOverlapping:
		return "overlapping"
	case TryTightestSingle:
		return "tightest-single"
	case RandomAssignment:
		return "random"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// OutcomeKind classifies a strategy attempt
type OutcomeKind int

const (
	Succeeded OutcomeKind = iota
	SucceededWithDuplicates
	PreconditionFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case SucceededWithDuplicates:
		return "succeeded-with-duplicates"
	default:
		return "precondition-failed"
	}
}

// Outcome of one strategy attempt. Distinct is set on success, Reason on
// precondition failure.
type Outcome struct {
	Kind     OutcomeKind
	Distinct int
	// ConstraintDuplicates counts, per unique constraint the plan targeted,
	// the rows repeating an earlier row's tuple on that constraint. Distinct
	// counts whole rows, so it can stay at len(Rows) while these are not zero.
	ConstraintDuplicates map[string]int
	Reason               error
}

// ErrAllStrategiesFailed is returned when no state produced a plan
var ErrAllStrategiesFailed = errors.New("no generation strategy could plan the table")

// Request holds everything needed to plan one table
type Request struct {
	Table       string
	Rows        int
	Constraints []models.UniqueConstraint
	// Columns are the insertable columns, used for nullability
	Columns []models.Column
	Pools   pools.Provider
	// PopulationRates maps nullable FK columns to the share of rows that get a value
	PopulationRates map[string]float64
	Seed            int64
}

// Result is the outcome of one attempt, and for a successful attempt its rows
type Result struct {
	State   State
	Outcome Outcome
	Rows    []models.RowAssignment
	// Overlap is set when the overlapping strategy produced the rows
	Overlap *overlap.Plan
	// Constraint is set when the tightest-single strategy produced the rows
	Constraint *models.UniqueConstraint
	// Failures holds the precondition failure of every state tried before State
	Failures map[State]error
}

type handler func(p *Planner, req Request) (*Result, error)

var handlers = [...]handler{
	TryOverlapping:    (*Planner).planOverlapping,
	TryTightestSingle: (*Planner).planTightest,
	RandomAssignment:  (*Planner).planRandom,
}

// Planner runs the precedence state machine
type Planner struct {
	Pairing overlap.Pairing
	Sink    diagnostics.Sink
}

// NewPlanner creates a planner reporting to sink
func NewPlanner(pairing overlap.Pairing, sink diagnostics.Sink) *Planner {
	if sink == nil {
		sink = diagnostics.Discard
	}
	return &Planner{Pairing: pairing, Sink: sink}
}

// Try runs a single state. A failed precondition comes back as a
// PreconditionFailed outcome without rows.
func (p *Planner) Try(state State, req Request) *Result {
	if state < 0 || state >= Done {
		return &Result{State: state, Outcome: Outcome{Kind: PreconditionFailed, Reason: errors.Errorf("no handler for state %s", state)}}
	}

	res, err := handlers[state](p, req)
	if err != nil {
		return &Result{State: state, Outcome: Outcome{Kind: PreconditionFailed, Reason: err}}
	}

	res.State = state
	res.Outcome.Distinct = overlap.DistinctRows(res.Rows)
	if res.Outcome.Distinct < len(res.Rows) {
		res.Outcome.Kind = SucceededWithDuplicates
	} else {
		res.Outcome.Kind = Succeeded
	}

	switch {
	case res.Overlap != nil:
		res.Outcome.ConstraintDuplicates = res.Overlap.ConstraintDuplicates()
	case res.Constraint != nil:
		res.Outcome.ConstraintDuplicates = map[string]int{
			res.Constraint.Name: overlap.ProjectionDuplicates(res.Rows, res.Constraint.Columns),
		}
	}

	// Pre-allocated plans only cover their constraint columns; the other
	// controlled columns still need pool values
	if state != RandomAssignment {
		res.Rows = p.completeRows(req, res.Rows)
	}
	return res
}

// Plan walks the states in precedence order and returns the first full plan
func (p *Planner) Plan(req Request) (*Result, error) {
	failures := make(map[State]error)

	for state := TryOverlapping; state != Done; state++ {
		res := p.Try(state, req)
		if res.Outcome.Kind == PreconditionFailed {
			failures[state] = res.Outcome.Reason
			p.sink().Emit(diagnostics.Event{
				Kind:     diagnostics.StrategyFailed,
				Severity: diagnostics.Warning,
				Table:    req.Table,
				Fields: map[string]interface{}{
					"strategy": state.String(),
					"reason":   res.Outcome.Reason.Error(),
				},
			})
			continue
		}

		res.Failures = failures
		p.sink().Emit(diagnostics.Event{
			Kind:  diagnostics.StrategySelected,
			Table: req.Table,
			Fields: map[string]interface{}{
				"strategy": state.String(),
				"outcome":  res.Outcome.Kind.String(),
				"rows":                  len(res.Rows),
				"distinct":              res.Outcome.Distinct,
				"constraint_duplicates": res.Outcome.ConstraintDuplicates,
			},
		})
		return res, nil
	}

	return &Result{State: Done, Outcome: Outcome{Kind: PreconditionFailed, Reason: ErrAllStrategiesFailed}, Failures: failures},
		errors.Wrapf(ErrAllStrategiesFailed, "table %s", req.Table)
}

func (p *Planner) sink() diagnostics.Sink {
	if p.Sink == nil {
		return diagnostics.Discard
	}
	return p.Sink
}

func (p *Planner) planOverlapping(req Request) (*Result, error) {
	plan, err := overlap.BuildPlan(req.Table, req.Constraints, req.Pools, req.Rows, overlap.Options{
		Pairing: p.Pairing,
		Sink:    p.sink(),
	})
	if err != nil {
		return nil, err
	}
	return &Result{Rows: plan.Rows, Overlap: plan}, nil
}
