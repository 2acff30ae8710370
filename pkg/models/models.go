package models

import "strings"

// Column represents a database column with its properties
type Column struct {
	Name             string
	DataType         string
	ColumnType       string
	CharMaxLength    *int64
	NumericPrecision *int64
	NumericScale     *int64
	IsNullable       bool
	ColumnKey        string
	Extra            string
	ColumnComment    string
}

// IsAutoIncrement reports whether MySQL fills the column itself
func (c Column) IsAutoIncrement() bool {
	return strings.Contains(strings.ToLower(c.Extra), "auto_increment")
}

// ForeignKey represents a foreign key relationship
type ForeignKey struct {
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	IsNullable       bool
	ConstraintName   string
}

// UniqueConstraint is a UNIQUE index (or the primary key) of a table.
// Columns are kept in index order.
type UniqueConstraint struct {
	Name    string
	Table   string
	Columns []string
}

// HasColumn reports whether the constraint covers the column
func (u UniqueConstraint) HasColumn(column string) bool {
	for _, c := range u.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Overlaps reports whether the two constraints share at least one column
func (u UniqueConstraint) Overlaps(other UniqueConstraint) bool {
	for _, c := range u.Columns {
		if other.HasColumn(c) {
			return true
		}
	}
	return false
}

// TableCategory represents the category of a table
type TableCategory int

const (
	Standalone TableCategory = iota
	Dependent
	ManyToMany
	Circular
)

func (c TableCategory) String() string {
	switch c {
	case Dependent:
		return "Dependent"
	case ManyToMany:
		return "Many-to-Many"
	case Circular:
		return "Circular"
	default:
		return "Standalone"
	}
}

// RowAssignment holds the pre-allocated values of the controlled columns of one row
type RowAssignment map[string]interface{}

// Clone returns a shallow copy of the assignment
func (r RowAssignment) Clone() RowAssignment {
	out := make(RowAssignment, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// PopulationResult represents the result of the population process
type PopulationResult struct {
	SuccessfulTables []string
	FailedTables     []string
	TotalRecords     int
}

// VerificationResult represents the result of the verification process
type VerificationResult struct {
	Success                  bool
	EmptyTables              []string
	PartiallyPopulatedTables map[string]int
}
