package overlap

import (
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/pkg/errors"
)

// Fanout is the number of rows generated per shared value: the largest pool
// size among the non-shared columns of every member, or 1 when no member has
// a non-shared column.
//
// Taking the maximum lets the widest constraint reach full distinctness
// inside a shared-value block. Constraints whose non-shared pools are smaller
// than the fanout wrap around and repeat tuples within the block.
func Fanout(g Group, shared []string, provider pools.Provider) (int, error) {
	fanout := 1
	for _, c := range g.Constraints {
		for _, col := range NonShared(c, shared) {
			pool, ok := provider.Pool(col)
			if !ok {
				return 0, errors.Wrapf(ErrUncontrolledColumn, "constraint %s, column %s", c.Name, col)
			}
			if pool.Len() == 0 {
				return 0, errors.Wrapf(ErrEmptyPool, "constraint %s, column %s", c.Name, col)
			}
			if pool.Len() > fanout {
				fanout = pool.Len()
			}
		}
	}
	return fanout, nil
}
