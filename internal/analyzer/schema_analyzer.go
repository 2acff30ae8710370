package analyzer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/yourbasic/graph"
)

// Querier runs information_schema queries against the target schema
type Querier interface {
	ExecuteQuery(query string, params ...interface{}) ([]map[string]interface{}, error)
	DatabaseName() string
}

// SchemaAnalyzer analyzes database schema, detects dependencies, and sorts tables for population
type SchemaAnalyzer struct {
	DB                 Querier
	Tables             []string
	Views              []string
	ForeignKeys        map[string][]models.ForeignKey
	UniqueConstraints  map[string][]models.UniqueConstraint
	ManyToManyTables   map[string]bool
	TableColumns       map[string][]models.Column
	DependencyGraph    *graph.Mutable
	TableIndexMap      map[string]int
	IndexTableMap      map[int]string
	DirectCircularDeps [][]string
	Logger             *logrus.Logger
}

// NewSchemaAnalyzer creates a new schema analyzer
func NewSchemaAnalyzer(db Querier, logger *logrus.Logger) *SchemaAnalyzer {
	return &SchemaAnalyzer{
		DB:                db,
		ForeignKeys:       make(map[string][]models.ForeignKey),
		UniqueConstraints: make(map[string][]models.UniqueConstraint),
		ManyToManyTables:  make(map[string]bool),
		TableColumns:      make(map[string][]models.Column),
		TableIndexMap:     make(map[string]int),
		IndexTableMap:     make(map[int]string),
		Logger:            logger,
	}
}

// AnalyzeSchema analyzes the database schema
func (sa *SchemaAnalyzer) AnalyzeSchema() error {
	database := sa.DB.DatabaseName()

	tablesQuery := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	tablesResult, err := sa.DB.ExecuteQuery(tablesQuery, database)
	if err != nil {
		sa.Logger.Errorf("Error getting tables: %v", err)
		return err
	}

	for _, row := range tablesResult {
		sa.Tables = append(sa.Tables, asString(row["table_name"]))
	}

	viewsQuery := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'VIEW'
		ORDER BY table_name
	`
	viewsResult, err := sa.DB.ExecuteQuery(viewsQuery, database)
	if err != nil {
		sa.Logger.Errorf("Error getting views: %v", err)
		return err
	}

	for _, row := range viewsResult {
		sa.Views = append(sa.Views, asString(row["table_name"]))
	}

	for _, table := range sa.Tables {
		if err := sa.loadColumns(table); err != nil {
			sa.Logger.Warningf("Failed to retrieve columns for table %s: %v", table, err)
		}
	}

	if err := sa.loadForeignKeys(); err != nil {
		return err
	}

	if err := sa.loadUniqueConstraints(); err != nil {
		return err
	}

	sa.detectManyToManyTables()

	return nil
}

func (sa *SchemaAnalyzer) loadColumns(table string) error {
	columnsQuery := `
		SELECT
			column_name,
			data_type,
			column_type,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			is_nullable,
			column_key,
			extra,
			column_comment
		FROM information_schema.columns
		WHERE table_schema = ?
		AND table_name = ?
		ORDER BY ordinal_position
	`
	columnsResult, err := sa.DB.ExecuteQuery(columnsQuery, sa.DB.DatabaseName(), table)
	if err != nil {
		return err
	}

	var columns []models.Column
	for _, row := range columnsResult {
		columns = append(columns, models.Column{
			Name:             asString(row["column_name"]),
			DataType:         asString(row["data_type"]),
			ColumnType:       asString(row["column_type"]),
			CharMaxLength:    asInt64Ptr(row["character_maximum_length"]),
			NumericPrecision: asInt64Ptr(row["numeric_precision"]),
			NumericScale:     asInt64Ptr(row["numeric_scale"]),
			IsNullable:       asString(row["is_nullable"]) == "YES",
			ColumnKey:        asString(row["column_key"]),
			Extra:            asString(row["extra"]),
			ColumnComment:    asString(row["column_comment"]),
		})
	}

	sa.TableColumns[table] = columns
	return nil
}

func (sa *SchemaAnalyzer) loadForeignKeys() error {
	fkQuery := `
		SELECT
			table_name,
			column_name,
			referenced_table_name,
			referenced_column_name,
			constraint_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		AND referenced_table_name IS NOT NULL
		ORDER BY table_name, column_name
	`
	fkResult, err := sa.DB.ExecuteQuery(fkQuery, sa.DB.DatabaseName())
	if err != nil {
		sa.Logger.Errorf("Error getting foreign keys: %v", err)
		return err
	}

	for i, table := range sa.Tables {
		sa.TableIndexMap[table] = i
		sa.IndexTableMap[i] = table
	}
	sa.DependencyGraph = graph.New(len(sa.Tables))

	for _, row := range fkResult {
		tableName := asString(row["table_name"])
		columnName := asString(row["column_name"])

		fk := models.ForeignKey{
			Table:            tableName,
			Column:           columnName,
			ReferencedTable:  asString(row["referenced_table_name"]),
			ReferencedColumn: asString(row["referenced_column_name"]),
			IsNullable:       sa.isNullable(tableName, columnName),
			ConstraintName:   asString(row["constraint_name"]),
		}
		sa.addForeignKey(fk)
	}

	return nil
}

// addForeignKey records fk and adds the child -> parent edge. Mandatory
// (NOT NULL) references cost 1, optional ones 2.
func (sa *SchemaAnalyzer) addForeignKey(fk models.ForeignKey) {
	sa.ForeignKeys[fk.Table] = append(sa.ForeignKeys[fk.Table], fk)

	weight := int64(2)
	if !fk.IsNullable {
		weight = 1
	}

	if srcIdx, ok := sa.TableIndexMap[fk.Table]; ok {
		if destIdx, ok := sa.TableIndexMap[fk.ReferencedTable]; ok && srcIdx != destIdx {
			sa.DependencyGraph.AddCost(srcIdx, destIdx, weight)
		}
	}
}

func (sa *SchemaAnalyzer) isNullable(table, column string) bool {
	for _, col := range sa.TableColumns[table] {
		if col.Name == column {
			return col.IsNullable
		}
	}
	return false
}

// loadUniqueConstraints reads every unique index. The primary key is kept
// first unless one of its columns is auto-increment, because MySQL assigns
// those values and they can never be pre-allocated. The other indexes follow
// in index name order, which decides the first overlap group of a table.
func (sa *SchemaAnalyzer) loadUniqueConstraints() error {
	uniqueQuery := `
		SELECT
			table_name,
			index_name,
			column_name,
			seq_in_index
		FROM information_schema.statistics
		WHERE table_schema = ?
		AND non_unique = 0
		ORDER BY table_name, index_name, seq_in_index
	`
	result, err := sa.DB.ExecuteQuery(uniqueQuery, sa.DB.DatabaseName())
	if err != nil {
		sa.Logger.Errorf("Error getting unique constraints: %v", err)
		return err
	}

	type key struct{ table, index string }
	byIndex := make(map[key]*models.UniqueConstraint)
	var order []key

	for _, row := range result {
		k := key{table: asString(row["table_name"]), index: asString(row["index_name"])}
		uc, ok := byIndex[k]
		if !ok {
			uc = &models.UniqueConstraint{Name: k.index, Table: k.table}
			byIndex[k] = uc
			order = append(order, k)
		}
		uc.Columns = append(uc.Columns, asString(row["column_name"]))
	}

	for _, k := range order {
		uc := *byIndex[k]
		if uc.Name == "PRIMARY" && sa.hasAutoIncrement(uc) {
			continue
		}
		sa.UniqueConstraints[uc.Table] = append(sa.UniqueConstraints[uc.Table], uc)
	}

	for table, constraints := range sa.UniqueConstraints {
		sort.SliceStable(constraints, func(i, j int) bool {
			pi, pj := constraints[i].Name == "PRIMARY", constraints[j].Name == "PRIMARY"
			if pi != pj {
				return pi
			}
			return constraints[i].Name < constraints[j].Name
		})
		sa.UniqueConstraints[table] = constraints
	}

	return nil
}

func (sa *SchemaAnalyzer) hasAutoIncrement(uc models.UniqueConstraint) bool {
	for _, col := range sa.TableColumns[uc.Table] {
		if uc.HasColumn(col.Name) && col.IsAutoIncrement() {
			return true
		}
	}
	return false
}

// detectManyToManyTables detects tables that represent many-to-many relationships
func (sa *SchemaAnalyzer) detectManyToManyTables() {
	for _, table := range sa.Tables {
		fks, hasFKs := sa.ForeignKeys[table]
		if !hasFKs {
			continue
		}

		columns := sa.TableColumns[table]
		if len(columns) == 0 {
			continue
		}

		pkColumns := 0
		for _, col := range columns {
			if col.ColumnKey == "PRI" {
				pkColumns++
			}
		}

		// A join table has at least 2 foreign keys that make up most of its
		// columns and nearly all of its primary key
		if len(fks) >= 2 && float64(len(fks))/float64(len(columns)) >= 0.5 && pkColumns >= len(fks)-1 {
			referencedTables := make(map[string]bool)
			for _, fk := range fks {
				referencedTables[fk.ReferencedTable] = true
			}

			if len(referencedTables) >= 2 {
				sa.ManyToManyTables[table] = true
			}
		}
	}
}

// GetCircularTables returns tables involved in circular dependencies: the
// members of every strongly connected component with more than one table.
// Self references do not count.
func (sa *SchemaAnalyzer) GetCircularTables() map[string]bool {
	circularTables := make(map[string]bool)
	sa.DirectCircularDeps = [][]string{}

	if sa.DependencyGraph == nil {
		return circularTables
	}

	for _, component := range graph.StrongComponents(sa.DependencyGraph) {
		if len(component) < 2 {
			continue
		}
		for _, v := range component {
			circularTables[sa.IndexTableMap[v]] = true
		}
	}

	// Record pairs that reference each other directly
	for i := 0; i < sa.DependencyGraph.Order(); i++ {
		for j := i + 1; j < sa.DependencyGraph.Order(); j++ {
			if sa.DependencyGraph.Edge(i, j) && sa.DependencyGraph.Edge(j, i) {
				sa.DirectCircularDeps = append(sa.DirectCircularDeps, []string{sa.IndexTableMap[i], sa.IndexTableMap[j]})
			}
		}
	}

	return circularTables
}

// GetTableInsertionOrder determines the order in which tables should be
// populated: parents before children, then circular tables by name, then
// many-to-many tables.
func (sa *SchemaAnalyzer) GetTableInsertionOrder() ([]string, map[string]bool) {
	circularTables := sa.GetCircularTables()

	var nonCircularTables []string
	for _, table := range sa.Tables {
		if !circularTables[table] {
			nonCircularTables = append(nonCircularTables, table)
		}
	}

	var orderedTables []string
	addedTables := make(map[string]bool)

	// Tables without foreign keys first
	for _, table := range nonCircularTables {
		if _, hasFKs := sa.ForeignKeys[table]; !hasFKs {
			orderedTables = append(orderedTables, table)
			addedTables[table] = true
		}
	}

	var dependentTables []string
	for _, table := range nonCircularTables {
		if !addedTables[table] {
			dependentTables = append(dependentTables, table)
		}
	}

	unresolved := func(table string) int {
		n := 0
		for _, fk := range sa.ForeignKeys[table] {
			if fk.ReferencedTable != table && !addedTables[fk.ReferencedTable] && !circularTables[fk.ReferencedTable] {
				n++
			}
		}
		return n
	}

	for len(dependentTables) > 0 {
		found := false
		for i, table := range dependentTables {
			if unresolved(table) == 0 {
				orderedTables = append(orderedTables, table)
				addedTables[table] = true
				dependentTables = append(dependentTables[:i], dependentTables[i+1:]...)
				found = true
				break
			}
		}

		// References to tables outside the schema can never resolve; take
		// the table with the fewest unresolved references and carry on
		if !found {
			sort.SliceStable(dependentTables, func(i, j int) bool {
				return unresolved(dependentTables[i]) < unresolved(dependentTables[j])
			})
			orderedTables = append(orderedTables, dependentTables[0])
			addedTables[dependentTables[0]] = true
			dependentTables = dependentTables[1:]
		}
	}

	var circularTablesList []string
	for table := range circularTables {
		if !addedTables[table] {
			circularTablesList = append(circularTablesList, table)
		}
	}
	sort.Strings(circularTablesList)
	orderedTables = append(orderedTables, circularTablesList...)

	var finalOrderedTables []string
	var manyToManyTablesList []string
	for _, table := range orderedTables {
		if sa.ManyToManyTables[table] {
			manyToManyTablesList = append(manyToManyTablesList, table)
		} else {
			finalOrderedTables = append(finalOrderedTables, table)
		}
	}

	return append(finalOrderedTables, manyToManyTablesList...), circularTables
}

// Category classifies a table for reporting
func (sa *SchemaAnalyzer) Category(table string, circularTables map[string]bool) models.TableCategory {
	switch {
	case sa.ManyToManyTables[table]:
		return models.ManyToMany
	case circularTables[table]:
		return models.Circular
	case len(sa.ForeignKeys[table]) > 0:
		return models.Dependent
	default:
		return models.Standalone
	}
}

// ColumnNames returns the insertable columns of a table in ordinal order
func (sa *SchemaAnalyzer) ColumnNames(table string) []string {
	var names []string
	for _, col := range sa.TableColumns[table] {
		if !col.IsAutoIncrement() {
			names = append(names, col.Name)
		}
	}
	return names
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt64Ptr(v interface{}) *int64 {
	if v == nil {
		return nil
	}
	val, err := strconv.ParseInt(strings.TrimSpace(asString(v)), 10, 64)
	if err != nil {
		return nil
	}
	return &val
}
