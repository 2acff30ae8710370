package overlap

import "github.com/pkg/errors"

// Precondition failures. Each one disqualifies the overlapping strategy for
// the current table only; callers move on to the next strategy.
var (
	// ErrNoOverlap means the table has fewer than two unique constraints or none share a column
	ErrNoOverlap = errors.New("no overlapping unique constraints")
	// ErrEmptySharedSet means no column is common to every constraint of the group
	ErrEmptySharedSet = errors.New("constraint group has no column shared by all members")
	// ErrUncontrolledColumn means a needed column has no value pool (configuration error)
	ErrUncontrolledColumn = errors.New("column has no value pool")
	// ErrEmptyPool means a needed value pool exists but holds no values
	ErrEmptyPool = errors.New("value pool is empty")
)
