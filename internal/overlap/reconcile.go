package overlap

import (
	"sort"
	"strings"

	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
)

// Reconciled is a combination sequence fitted to a requested row count
type Reconciled struct {
	Rows []models.RowAssignment
	// Available is the length of the sequence before fitting
	Available int
	// Repeated is the number of rows that repeat an earlier row because the
	// sequence had to be cycled
	Repeated int
}

// Cycled reports whether the sequence was shorter than requested
func (r Reconciled) Cycled() bool {
	return r.Repeated > 0
}

// Reconcile returns exactly n rows: the first n combinations when there are
// enough, otherwise the whole sequence repeated in order until n rows exist.
// Every returned row is a fresh copy so callers may extend it.
func Reconcile(combos []models.RowAssignment, n int) (Reconciled, error) {
	if n < 0 {
		return Reconciled{}, errors.Errorf("negative row count %d", n)
	}
	if len(combos) == 0 {
		return Reconciled{}, errors.Wrap(ErrEmptyPool, "no combinations to reconcile")
	}

	rows := make([]models.RowAssignment, n)
	for i := range rows {
		rows[i] = combos[i%len(combos)].Clone()
	}

	repeated := 0
	if n > len(combos) {
		repeated = n - len(combos)
	}
	return Reconciled{Rows: rows, Available: len(combos), Repeated: repeated}, nil
}

// ProjectionDuplicates counts rows whose values on columns repeat an earlier
// row's values on those columns.
func ProjectionDuplicates(rows []models.RowAssignment, columns []string) int {
	seen := make(map[string]bool, len(rows))
	dups := 0
	for _, row := range rows {
		key := projectionKey(row, columns)
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
	}
	return dups
}

// DistinctRows counts distinct assignments over all assigned columns
func DistinctRows(rows []models.RowAssignment) int {
	if len(rows) == 0 {
		return 0
	}
	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return len(rows) - ProjectionDuplicates(rows, columns)
}

func projectionKey(row models.RowAssignment, columns []string) string {
	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(pools.Key(row[col]))
	}
	return b.String()
}
