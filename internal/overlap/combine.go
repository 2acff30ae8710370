package overlap

import (
	"fmt"

	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
)

// Pairing decides how the values of additional shared columns are matched
// with the values of the primary (first) shared column.
type Pairing int

const (
	// PairZip pairs values at the same index and stops at the shortest pool
	PairZip Pairing = iota
	// PairCycle follows the primary pool and wraps the shorter companion pools
	PairCycle
)

func (p Pairing) String() string {
	switch p {
	case PairZip:
		return "zip"
	case PairCycle:
		return "cycle"
	default:
		return fmt.Sprintf("pairing(%d)", int(p))
	}
}

// ParsePairing converts a configuration value into a Pairing
func ParsePairing(s string) (Pairing, error) {
	switch s {
	case "", "zip":
		return PairZip, nil
	case "cycle":
		return PairCycle, nil
	default:
		return PairZip, errors.Errorf("unknown shared column pairing %q", s)
	}
}

// SharedValues returns one partial assignment per shared value, holding the
// primary shared column and its paired companions, in primary pool order.
func SharedValues(shared []string, provider pools.Provider, pairing Pairing) ([]models.RowAssignment, error) {
	if len(shared) == 0 {
		return nil, ErrEmptySharedSet
	}

	sharedPools := make([]*pools.Pool, len(shared))
	for i, col := range shared {
		pool, ok := provider.Pool(col)
		if !ok {
			return nil, errors.Wrapf(ErrUncontrolledColumn, "shared column %s", col)
		}
		if pool.Len() == 0 {
			return nil, errors.Wrapf(ErrEmptyPool, "shared column %s", col)
		}
		sharedPools[i] = pool
	}

	count := sharedPools[0].Len()
	if pairing == PairZip {
		for _, p := range sharedPools[1:] {
			if p.Len() < count {
				count = p.Len()
			}
		}
	}

	values := make([]models.RowAssignment, count)
	for i := 0; i < count; i++ {
		row := make(models.RowAssignment, len(shared))
		for j, col := range shared {
			row[col] = sharedPools[j].At(i)
		}
		values[i] = row
	}
	return values, nil
}

// Combinations enumerates the row assignments for a group: shared values in
// pool order, and for each of them fanout rows whose non-shared columns take
// pool(col)[localIdx mod len(pool(col))]. The result has exactly
// len(shared values) * fanout entries and is the same for the same inputs.
func Combinations(g Group, shared []string, fanout int, provider pools.Provider, pairing Pairing) ([]models.RowAssignment, error) {
	sharedValues, err := SharedValues(shared, provider, pairing)
	if err != nil {
		return nil, err
	}

	type column struct {
		name string
		pool *pools.Pool
	}
	var nonShared []column
	assigned := make(map[string]bool)
	for _, c := range g.Constraints {
		for _, col := range NonShared(c, shared) {
			if assigned[col] {
				continue
			}
			pool, ok := provider.Pool(col)
			if !ok {
				return nil, errors.Wrapf(ErrUncontrolledColumn, "constraint %s, column %s", c.Name, col)
			}
			if pool.Len() == 0 {
				return nil, errors.Wrapf(ErrEmptyPool, "constraint %s, column %s", c.Name, col)
			}
			assigned[col] = true
			nonShared = append(nonShared, column{name: col, pool: pool})
		}
	}

	combos := make([]models.RowAssignment, 0, len(sharedValues)*fanout)
	for _, s := range sharedValues {
		for localIdx := 0; localIdx < fanout; localIdx++ {
			row := s.Clone()
			for _, col := range nonShared {
				row[col.name] = col.pool.At(localIdx)
			}
			combos = append(combos, row)
		}
	}
	return combos, nil
}
