package strategy

import (
	"testing"

	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ints(values ...int) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func scenarioRequest(rows int) Request {
	set := pools.Set{}
	set.Add(pools.NewValuesPool("X", ints(1, 2, 3)))
	set.Add(pools.NewValuesPool("Y", ints(10, 20)))
	set.Add(pools.NewValuesPool("Z", ints(100, 200, 300)))

	return Request{
		Table: "t",
		Rows:  rows,
		Constraints: []models.UniqueConstraint{
			{Name: "C1", Table: "t", Columns: []string{"X", "Y"}},
			{Name: "C2", Table: "t", Columns: []string{"X", "Z"}},
		},
		Columns: []models.Column{{Name: "X"}, {Name: "Y"}, {Name: "Z"}},
		Pools:   set,
		Seed:    42,
	}
}

func TestPlanPrefersOverlapping(t *testing.T) {
	rec := &diagnostics.Recorder{}
	planner := NewPlanner(overlap.PairZip, rec)

	res, err := planner.Plan(scenarioRequest(9))
	require.NoError(t, err)
	assert.Equal(t, TryOverlapping, res.State)
	assert.Equal(t, Succeeded, res.Outcome.Kind)
	assert.Equal(t, 9, res.Outcome.Distinct)
	require.NotNil(t, res.Overlap)
	assert.Len(t, res.Rows, 9)
	assert.Empty(t, res.Failures)

	selected := rec.Find(diagnostics.StrategySelected)
	require.Len(t, selected, 1)
	assert.Equal(t, "overlapping", selected[0].Fields["strategy"])
}

func TestPlanReportsDuplicates(t *testing.T) {
	res, err := NewPlanner(overlap.PairZip, nil).Plan(scenarioRequest(20))
	require.NoError(t, err)
	assert.Equal(t, TryOverlapping, res.State)
	assert.Equal(t, SucceededWithDuplicates, res.Outcome.Kind)
	assert.Equal(t, 9, res.Outcome.Distinct)
	assert.Equal(t, 11, res.Overlap.Duplicates)
}

func TestTryOverlappingEmptyPool(t *testing.T) {
	req := scenarioRequest(9)
	req.Pools.(pools.Set).Add(pools.NewValuesPool("Z", nil))

	res := NewPlanner(overlap.PairZip, nil).Try(TryOverlapping, req)
	assert.Equal(t, PreconditionFailed, res.Outcome.Kind)
	assert.True(t, errors.Is(res.Outcome.Reason, overlap.ErrEmptyPool))
	assert.Nil(t, res.Rows)
	assert.Nil(t, res.Overlap)
}

func TestPlanFallsBackToTightestSingle(t *testing.T) {
	req := scenarioRequest(9)
	req.Pools.(pools.Set).Add(pools.NewValuesPool("Z", nil))
	rec := &diagnostics.Recorder{}

	res, err := NewPlanner(overlap.PairZip, rec).Plan(req)
	require.NoError(t, err)
	assert.Equal(t, TryTightestSingle, res.State)
	require.NotNil(t, res.Constraint)
	assert.Equal(t, "C1", res.Constraint.Name)
	assert.True(t, errors.Is(res.Failures[TryOverlapping], overlap.ErrEmptyPool))

	// C1 only has 3 x 2 tuples, so the sequence cycles after six rows
	assert.Equal(t, SucceededWithDuplicates, res.Outcome.Kind)
	assert.Equal(t, 6, res.Outcome.Distinct)
	assert.Equal(t, models.RowAssignment{"X": 1, "Y": 10}, res.Rows[0])
	assert.Equal(t, models.RowAssignment{"X": 1, "Y": 20}, res.Rows[1])
	assert.Equal(t, models.RowAssignment{"X": 2, "Y": 10}, res.Rows[2])
	assert.Equal(t, res.Rows[0], res.Rows[6])

	failed := rec.Find(diagnostics.StrategyFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "overlapping", failed[0].Fields["strategy"])
}

func TestOutcomeCountsPerConstraintDuplicates(t *testing.T) {
	rec := &diagnostics.Recorder{}
	res, err := NewPlanner(overlap.PairZip, rec).Plan(scenarioRequest(9))
	require.NoError(t, err)

	// Every row is distinct, but C1 only has six (X, Y) tuples for nine rows
	assert.Equal(t, Succeeded, res.Outcome.Kind)
	assert.Equal(t, map[string]int{"C1": 3, "C2": 0}, res.Outcome.ConstraintDuplicates)

	selected := rec.Find(diagnostics.StrategySelected)
	require.Len(t, selected, 1)
	assert.Equal(t, map[string]int{"C1": 3, "C2": 0}, selected[0].Fields["constraint_duplicates"])

	preallocated := rec.Find(diagnostics.RowsPreallocated)
	require.Len(t, preallocated, 1)
	assert.Equal(t, map[string]int{"C1": 3, "C2": 0}, preallocated[0].Fields["constraint_duplicates"])

	req := scenarioRequest(9)
	req.Pools.(pools.Set).Add(pools.NewValuesPool("Z", nil))
	res, err = NewPlanner(overlap.PairZip, nil).Plan(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"C1": 3}, res.Outcome.ConstraintDuplicates)
}

func TestPreallocatedPlansFillRemainingControlledColumns(t *testing.T) {
	for _, tc := range []struct {
		name  string
		state State
		edit  func(req *Request)
	}{
		{"overlapping", TryOverlapping, func(req *Request) {}},
		{"tightest-single", TryTightestSingle, func(req *Request) { req.Constraints = req.Constraints[:1] }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := scenarioRequest(9)
			req.Pools.(pools.Set).Add(pools.NewFKPool("W", ints(7)))
			req.Pools.(pools.Set).Add(pools.NewFKPool("V", ints(1, 2)))
			req.Columns = append(req.Columns,
				models.Column{Name: "W"},
				models.Column{Name: "V", IsNullable: true},
				models.Column{Name: "note", IsNullable: true},
			)
			req.PopulationRates = map[string]float64{"V": 0}
			tc.edit(&req)

			res, err := NewPlanner(overlap.PairZip, nil).Plan(req)
			require.NoError(t, err)
			require.Equal(t, tc.state, res.State)
			require.Len(t, res.Rows, 9)

			for i, row := range res.Rows {
				assert.Equal(t, 7, row["W"], "row %d", i)
				v, assigned := row["V"]
				assert.True(t, assigned, "row %d", i)
				assert.Nil(t, v, "row %d", i)
				_, assigned = row["note"]
				assert.False(t, assigned, "uncontrolled columns are left to the value generator")
			}
		})
	}

	// The pre-allocated values themselves are never overwritten
	res, err := NewPlanner(overlap.PairZip, nil).Plan(scenarioRequest(9))
	require.NoError(t, err)
	for i, row := range res.Rows {
		assert.Equal(t, res.Overlap.Rows[i]["X"], row["X"])
		assert.Equal(t, res.Overlap.Rows[i]["Y"], row["Y"])
		assert.Equal(t, res.Overlap.Rows[i]["Z"], row["Z"])
	}

	req := scenarioRequest(3)
	req.Pools.(pools.Set).Add(pools.NewFKPool("W", ints(7)))
	req.Columns = append(req.Columns, models.Column{Name: "W"})
	res, err = NewPlanner(overlap.PairZip, nil).Plan(req)
	require.NoError(t, err)
	for _, row := range res.Overlap.Rows {
		_, assigned := row["W"]
		assert.False(t, assigned, "the overlap plan keeps only its group columns")
	}
}

func TestPlanFallsBackToRandom(t *testing.T) {
	req := scenarioRequest(5)
	req.Constraints = nil

	res, err := NewPlanner(overlap.PairZip, nil).Plan(req)
	require.NoError(t, err)
	assert.Equal(t, RandomAssignment, res.State)
	assert.Len(t, res.Rows, 5)
	assert.True(t, errors.Is(res.Failures[TryOverlapping], overlap.ErrNoOverlap))
	assert.True(t, errors.Is(res.Failures[TryTightestSingle], ErrNoEligibleConstraint))

	for _, row := range res.Rows {
		assert.Contains(t, ints(1, 2, 3), row["X"])
		assert.Contains(t, ints(10, 20), row["Y"])
		assert.Contains(t, ints(100, 200, 300), row["Z"])
	}
}

func TestPlanFailsOnlyWhenEveryStateFails(t *testing.T) {
	req := scenarioRequest(-1)
	req.Constraints = nil

	res, err := NewPlanner(overlap.PairZip, nil).Plan(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllStrategiesFailed))
	assert.Equal(t, Done, res.State)
	assert.Len(t, res.Failures, 3)
}

func TestTightest(t *testing.T) {
	set := pools.Set{}
	set.Add(pools.NewValuesPool("a", ints(1, 2, 3)))
	set.Add(pools.NewValuesPool("b", ints(1, 2)))
	set.Add(pools.NewValuesPool("c", ints(1, 2)))

	constraints := []models.UniqueConstraint{
		{Name: "ab", Columns: []string{"a", "b"}},
		{Name: "bc", Columns: []string{"b", "c"}},
		{Name: "cb", Columns: []string{"c", "b"}},
		{Name: "ad", Columns: []string{"a", "d"}},
	}

	c, size, err := Tightest(constraints, set)
	require.NoError(t, err)
	assert.Equal(t, "bc", c.Name)
	assert.Equal(t, 4, size)

	_, _, err = Tightest(constraints[3:], set)
	assert.True(t, errors.Is(err, ErrNoEligibleConstraint))
}

func TestCartesianProductOdometerOrder(t *testing.T) {
	set := pools.Set{}
	set.Add(pools.NewValuesPool("a", ints(1, 2)))
	set.Add(pools.NewValuesPool("b", []interface{}{"x", "y", "z"}))
	c := models.UniqueConstraint{Name: "ab", Columns: []string{"a", "b"}}

	all := CartesianProduct(c, set, 100)
	require.Len(t, all, 6)
	assert.Equal(t, models.RowAssignment{"a": 1, "b": "x"}, all[0])
	assert.Equal(t, models.RowAssignment{"a": 1, "b": "z"}, all[2])
	assert.Equal(t, models.RowAssignment{"a": 2, "b": "x"}, all[3])
	assert.Equal(t, models.RowAssignment{"a": 2, "b": "z"}, all[5])

	assert.Len(t, CartesianProduct(c, set, 4), 4)
}

func randomRequest(rows int, nullable bool, rates map[string]float64, values []interface{}) Request {
	set := pools.Set{}
	set.Add(pools.NewFKPool("U_ID", values))
	return Request{
		Table:           "P",
		Rows:            rows,
		Columns:         []models.Column{{Name: "U_ID", IsNullable: nullable}, {Name: "note", IsNullable: true}},
		Pools:           set,
		PopulationRates: rates,
		Seed:            42,
	}
}

func countPopulated(rows []models.RowAssignment, column string) int {
	n := 0
	for _, r := range rows {
		if r[column] != nil {
			n++
		}
	}
	return n
}

func TestRandomPopulatesNullableForeignKeysByDefault(t *testing.T) {
	res := NewPlanner(overlap.PairZip, nil).Try(RandomAssignment, randomRequest(100, true, nil, ints(1, 2, 3, 4, 5)))
	require.NotEqual(t, PreconditionFailed, res.Outcome.Kind)
	assert.Equal(t, 100, countPopulated(res.Rows, "U_ID"))
	for _, r := range res.Rows {
		assert.Contains(t, ints(1, 2, 3, 4, 5), r["U_ID"])
		_, assigned := r["note"]
		assert.False(t, assigned, "uncontrolled columns are left to the value generator")
	}
}

func TestRandomPopulationRate(t *testing.T) {
	rates := map[string]float64{"U_ID": 0.5}

	res := NewPlanner(overlap.PairZip, nil).Try(RandomAssignment, randomRequest(1000, true, rates, ints(1, 2, 3, 4, 5)))
	populated := countPopulated(res.Rows, "U_ID")
	assert.Greater(t, populated, 400)
	assert.Less(t, populated, 600)

	res = NewPlanner(overlap.PairZip, nil).Try(RandomAssignment, randomRequest(100, false, rates, ints(1, 2, 3, 4, 5)))
	assert.Equal(t, 100, countPopulated(res.Rows, "U_ID"), "NOT NULL columns ignore the rate")
}

func TestRandomWithoutParentValues(t *testing.T) {
	res := NewPlanner(overlap.PairZip, nil).Try(RandomAssignment, randomRequest(3, true, nil, nil))
	for _, r := range res.Rows {
		v, assigned := r["U_ID"]
		assert.True(t, assigned)
		assert.Nil(t, v)
	}

	rec := &diagnostics.Recorder{}
	res = NewPlanner(overlap.PairZip, rec).Try(RandomAssignment, randomRequest(3, false, nil, nil))
	for _, r := range res.Rows {
		_, assigned := r["U_ID"]
		assert.False(t, assigned)
	}
	assert.Len(t, rec.Find(diagnostics.MissingParentValues), 1)
}

func TestRandomIsSeeded(t *testing.T) {
	req := randomRequest(50, false, nil, ints(1, 2, 3, 4, 5, 6, 7, 8, 9))
	planner := NewPlanner(overlap.PairZip, nil)
	assert.Equal(t, planner.Try(RandomAssignment, req).Rows, planner.Try(RandomAssignment, req).Rows)
}
