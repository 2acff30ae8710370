package strategy

import (
	"math"

	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
)

// ErrNoEligibleConstraint means no unique constraint has a non-empty pool for every column
var ErrNoEligibleConstraint = errors.New("no unique constraint with every column controlled")

// Tightest returns the constraint with the smallest Cartesian product of
// pool sizes among those whose columns all have non-empty pools. Ties keep
// the earlier constraint.
func Tightest(constraints []models.UniqueConstraint, provider pools.Provider) (*models.UniqueConstraint, int, error) {
	best := -1
	bestSize := 0

	for i, c := range constraints {
		size, ok := productSize(c, provider)
		if !ok {
			continue
		}
		if best == -1 || size < bestSize {
			best = i
			bestSize = size
		}
	}

	if best == -1 {
		return nil, 0, ErrNoEligibleConstraint
	}
	c := constraints[best]
	return &c, bestSize, nil
}

// productSize saturates at math.MaxInt
func productSize(c models.UniqueConstraint, provider pools.Provider) (int, bool) {
	if len(c.Columns) == 0 {
		return 0, false
	}
	size := 1
	for _, col := range c.Columns {
		pool, ok := provider.Pool(col)
		if !ok || pool.Len() == 0 {
			return 0, false
		}
		if size > math.MaxInt/pool.Len() {
			size = math.MaxInt
		} else {
			size *= pool.Len()
		}
	}
	return size, true
}

// CartesianProduct enumerates up to limit tuples of the constraint's pools in
// odometer order, the last column changing fastest.
func CartesianProduct(c models.UniqueConstraint, provider pools.Provider, limit int) []models.RowAssignment {
	columnPools := make([]*pools.Pool, len(c.Columns))
	for i, col := range c.Columns {
		columnPools[i], _ = provider.Pool(col)
	}

	indices := make([]int, len(c.Columns))
	var out []models.RowAssignment
	for len(out) < limit {
		row := make(models.RowAssignment, len(c.Columns))
		for i, col := range c.Columns {
			row[col] = columnPools[i].At(indices[i])
		}
		out = append(out, row)

		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < columnPools[pos].Len() {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}

func (p *Planner) planTightest(req Request) (*Result, error) {
	c, size, err := Tightest(req.Constraints, req.Pools)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", req.Table)
	}

	limit := req.Rows
	if limit < 1 {
		limit = 1
	}
	if size < limit {
		limit = size
	}

	reconciled, err := overlap.Reconcile(CartesianProduct(*c, req.Pools, limit), req.Rows)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: reconciled.Rows, Constraint: c}, nil
}
