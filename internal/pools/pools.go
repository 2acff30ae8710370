package pools

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies where the candidate values of a pool come from
type Kind int

const (
	// FKPool values are the keys already written to the referenced parent table
	FKPool Kind = iota
	// ExplicitValues values are listed in the configuration
	ExplicitValues
	// ExplicitRange values are expanded from a configured integer range
	ExplicitRange
)

func (k Kind) String() string {
	switch k {
	case FKPool:
		return "fk"
	case ExplicitValues:
		return "values"
	case ExplicitRange:
		return "range"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pool is an ordered, deduplicated sequence of candidate values for one column.
// A Pool is never modified after construction.
type Pool struct {
	Column string
	Kind   Kind
	values []interface{}
}

// NewFKPool builds a pool from parent key values in the order they were written
func NewFKPool(column string, parentValues []interface{}) *Pool {
	return &Pool{Column: column, Kind: FKPool, values: dedupe(parentValues)}
}

// NewValuesPool builds a pool from explicitly configured values
func NewValuesPool(column string, values []interface{}) *Pool {
	return &Pool{Column: column, Kind: ExplicitValues, values: dedupe(values)}
}

// MaxRangeSize caps how many values a configured range may expand to
const MaxRangeSize = 1 << 20

// NewRangePool expands [start, end] with the given step into a pool.
// A zero step defaults to 1.
func NewRangePool(column string, start, end, step int64) (*Pool, error) {
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return nil, errors.Errorf("range for column %s has negative step %d", column, step)
	}
	if end < start {
		return nil, errors.Errorf("range for column %s ends before it starts (%d > %d)", column, start, end)
	}

	// Unsigned arithmetic holds every span of two int64 values
	span := uint64(end) - uint64(start)
	count := span/uint64(step) + 1
	if span/uint64(step) >= MaxRangeSize {
		return nil, errors.Errorf("range for column %s expands to more than %d values", column, MaxRangeSize)
	}

	values := make([]interface{}, 0, count)
	for i := uint64(0); i < count; i++ {
		values = append(values, int64(uint64(start)+i*uint64(step)))
	}
	return &Pool{Column: column, Kind: ExplicitRange, values: values}, nil
}

// Len returns the number of candidate values
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// At returns the value at index i modulo the pool size. Cyclic indexing is
// what lets a fanout larger than the pool wrap back to the first entry.
func (p *Pool) At(i int) interface{} {
	return p.values[i%len(p.values)]
}

// Values returns a copy of the candidate values
func (p *Pool) Values() []interface{} {
	out := make([]interface{}, len(p.values))
	copy(out, p.values)
	return out
}

// Provider supplies the pool for a column. The boolean is false when the
// column is not controlled (neither FK-backed nor configured).
type Provider interface {
	Pool(column string) (*Pool, bool)
}

// Set is a Provider backed by a map, one entry per controlled column
type Set map[string]*Pool

// Pool implements Provider
func (s Set) Pool(column string) (*Pool, bool) {
	p, ok := s[column]
	return p, ok
}

// Add registers a pool under its column name, replacing any earlier pool
func (s Set) Add(p *Pool) {
	s[p.Column] = p
}

// Columns returns the controlled column names
func (s Set) Columns() []string {
	columns := make([]string, 0, len(s))
	for c := range s {
		columns = append(columns, c)
	}
	return columns
}

// dedupe keeps the first occurrence of every value
func dedupe(values []interface{}) []interface{} {
	seen := make(map[string]bool, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		key := Key(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// Key renders a value into a comparable form. Values scanned from MySQL
// arrive as int64, string or []byte; all of them print unambiguously.
func Key(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "\x00NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
