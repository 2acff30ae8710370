package populator

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/ChrisCGH/generate-synthetic-data/internal/analyzer"
	"github.com/ChrisCGH/generate-synthetic-data/internal/config"
	"github.com/ChrisCGH/generate-synthetic-data/internal/connector"
	"github.com/ChrisCGH/generate-synthetic-data/internal/generator"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/ChrisCGH/generate-synthetic-data/internal/strategy"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const batchSize = 100

// TablePlan is the strategy result chosen for one table
type TablePlan struct {
	Table    string
	Category models.TableCategory
	Result   *strategy.Result
}

// DatabasePopulator walks the schema in dependency order, plans the
// controlled columns of every table and writes the generated rows
type DatabasePopulator struct {
	DB             *connector.DatabaseConnector
	SchemaAnalyzer *analyzer.SchemaAnalyzer
	DataGenerator  *generator.DataGenerator
	Planner        *strategy.Planner
	Config         *config.Config
	// PlanOnly plans every table without writing anything
	PlanOnly bool

	Plans          []TablePlan
	InsertedCounts map[string]int
	SkippedCounts  map[string]int
	FailedTables   map[string]bool
	Logger         *logrus.Logger

	parentValues map[string]map[string][]interface{}
	deferredFKs  map[string][]models.ForeignKey
}

// NewDatabasePopulator creates a new database populator
func NewDatabasePopulator(
	db *connector.DatabaseConnector,
	schemaAnalyzer *analyzer.SchemaAnalyzer,
	dataGenerator *generator.DataGenerator,
	planner *strategy.Planner,
	cfg *config.Config,
	logger *logrus.Logger,
) *DatabasePopulator {
	return &DatabasePopulator{
		DB:             db,
		SchemaAnalyzer: schemaAnalyzer,
		DataGenerator:  dataGenerator,
		Planner:        planner,
		Config:         cfg,
		InsertedCounts: make(map[string]int),
		SkippedCounts:  make(map[string]int),
		FailedTables:   make(map[string]bool),
		Logger:         logger,
		parentValues:   make(map[string]map[string][]interface{}),
		deferredFKs:    make(map[string][]models.ForeignKey),
	}
}

// PopulateDatabase populates every table and reports whether all succeeded.
// A failing table is recorded and the remaining tables are still attempted.
func (dp *DatabasePopulator) PopulateDatabase() bool {
	orderedTables, circularTables := dp.SchemaAnalyzer.GetTableInsertionOrder()

	success := true
	for _, table := range orderedTables {
		if err := dp.populateTable(table, circularTables); err != nil {
			dp.Logger.Errorf("Failed to populate table %s: %v", table, err)
			dp.FailedTables[table] = true
			success = false
		}
	}

	if !dp.PlanOnly {
		for _, table := range orderedTables {
			if dp.FailedTables[table] || len(dp.deferredFKs[table]) == 0 {
				continue
			}
			if err := dp.resolveDeferredForeignKeys(table); err != nil {
				dp.Logger.Errorf("Error updating circular foreign keys of %s: %v", table, err)
				dp.FailedTables[table] = true
				success = false
			}
		}
	}

	return success
}

// Result summarizes the run in table order
func (dp *DatabasePopulator) Result() models.PopulationResult {
	var result models.PopulationResult
	for _, tp := range dp.Plans {
		if dp.FailedTables[tp.Table] {
			continue
		}
		result.SuccessfulTables = append(result.SuccessfulTables, tp.Table)
		result.TotalRecords += dp.InsertedCounts[tp.Table]
	}
	for _, table := range dp.SchemaAnalyzer.Tables {
		if dp.FailedTables[table] {
			result.FailedTables = append(result.FailedTables, table)
		}
	}
	return result
}

// populateTable plans and writes a single table
func (dp *DatabasePopulator) populateTable(table string, circularTables map[string]bool) error {
	dp.Logger.Infof("Populating table: %s", table)

	columns := dp.insertableColumns(table)
	if len(columns) == 0 {
		dp.Logger.Warningf("No insertable columns found for table: %s", table)
		dp.Plans = append(dp.Plans, TablePlan{Table: table, Category: dp.SchemaAnalyzer.Category(table, circularTables)})
		return nil
	}

	names := dp.SchemaAnalyzer.ColumnNames(table)

	set, err := dp.buildPools(table, names, circularTables)
	if err != nil {
		return err
	}

	rows := dp.Config.RowsFor(table)
	if dp.SchemaAnalyzer.ManyToManyTables[table] {
		rows = dp.calculateManyToManyRecords(table, set, rows)
	}

	res, err := dp.Planner.Plan(strategy.Request{
		Table:           table,
		Rows:            rows,
		Constraints:     dp.SchemaAnalyzer.UniqueConstraints[table],
		Columns:         columns,
		Pools:           set,
		PopulationRates: dp.Config.PopulationRates(table, names),
		Seed:            tableSeed(dp.Config.Seed, table),
	})
	dp.Plans = append(dp.Plans, TablePlan{Table: table, Category: dp.SchemaAnalyzer.Category(table, circularTables), Result: res})
	if err != nil {
		return err
	}

	if dp.PlanOnly {
		return nil
	}

	inserted, err := dp.insertRows(table, columns, res.Rows)
	dp.InsertedCounts[table] += inserted
	delete(dp.parentValues, table)
	if err != nil {
		return err
	}

	dp.Logger.Infof("Successfully populated table %s with %d records (%s strategy)", table, inserted, res.State)
	return nil
}

func (dp *DatabasePopulator) insertableColumns(table string) []models.Column {
	var columns []models.Column
	for _, col := range dp.SchemaAnalyzer.TableColumns[table] {
		if !col.IsAutoIncrement() {
			columns = append(columns, col)
		}
	}
	return columns
}

// buildPools materializes the FK pools of a table from parent rows already
// in the database, then layers the configured explicit pools on top.
// Circular references whose parent is still empty are remembered so they
// can be filled in once every table has rows.
func (dp *DatabasePopulator) buildPools(table string, columns []string, circularTables map[string]bool) (pools.Set, error) {
	set := pools.Set{}

	for _, fk := range dp.SchemaAnalyzer.ForeignKeys[table] {
		values, err := dp.fetchParentValues(fk.ReferencedTable, fk.ReferencedColumn)
		if err != nil {
			return nil, errors.Wrapf(err, "reading parent values for %s.%s", table, fk.Column)
		}
		if len(values) == 0 && fk.IsNullable && (circularTables[fk.ReferencedTable] || fk.ReferencedTable == table) {
			dp.deferredFKs[table] = append(dp.deferredFKs[table], fk)
		}
		set.Add(pools.NewFKPool(fk.Column, values))
	}

	explicit, err := dp.Config.ExplicitPools(table, columns)
	if err != nil {
		return nil, err
	}
	for _, p := range explicit {
		set.Add(p)
	}

	return set, nil
}

// fetchParentValues returns the distinct non-NULL values of a parent column,
// cached until the parent table is written again
func (dp *DatabasePopulator) fetchParentValues(table, column string) ([]interface{}, error) {
	if cached, ok := dp.parentValues[table][column]; ok {
		return cached, nil
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT %s AS value FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		quoteIdent(column), quoteIdent(table), quoteIdent(column), quoteIdent(column),
	)
	result, err := dp.DB.ExecuteQuery(query)
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, 0, len(result))
	for _, row := range result {
		values = append(values, row["value"])
	}

	if dp.parentValues[table] == nil {
		dp.parentValues[table] = make(map[string][]interface{})
	}
	dp.parentValues[table][column] = values
	return values, nil
}

// insertRows fills the uncontrolled columns and writes the rows in batches.
// A batch rejected by a unique key is retried row by row so only the
// colliding rows are skipped.
func (dp *DatabasePopulator) insertRows(table string, columns []models.Column, assignments []models.RowAssignment) (int, error) {
	var names, placeholders []string
	for _, col := range columns {
		names = append(names, quoteIdent(col.Name))
		placeholders = append(placeholders, "?")
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
	)

	inserted := 0
	var paramsList [][]interface{}

	flush := func() error {
		if len(paramsList) == 0 {
			return nil
		}
		defer func() { paramsList = nil }()

		affected, err := dp.DB.ExecuteMany(insertSQL, paramsList)
		if err == nil {
			inserted += int(affected)
			return nil
		}
		if !connector.IsDuplicateEntry(err) {
			return errors.Wrapf(err, "inserting into %s", table)
		}

		for _, params := range paramsList {
			affected, err := dp.DB.ExecuteStatement(insertSQL, params...)
			if connector.IsDuplicateEntry(err) {
				dp.SkippedCounts[table]++
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "inserting into %s", table)
			}
			inserted += int(affected)
		}
		dp.Logger.Warningf("Skipped %d duplicate rows in table %s", dp.SkippedCounts[table], table)
		return nil
	}

	for _, assignment := range assignments {
		row := dp.DataGenerator.FillRow(columns, assignment)
		params := make([]interface{}, len(columns))
		for i, col := range columns {
			params[i] = row[col.Name]
		}
		paramsList = append(paramsList, params)

		if len(paramsList) >= batchSize {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}

	return inserted, flush()
}

// resolveDeferredForeignKeys points the NULL circular references of a table
// at parent rows that exist now that every table has been written
func (dp *DatabasePopulator) resolveDeferredForeignKeys(table string) error {
	pkColumn := ""
	for _, col := range dp.SchemaAnalyzer.TableColumns[table] {
		if col.ColumnKey == "PRI" {
			pkColumn = col.Name
			break
		}
	}
	if pkColumn == "" {
		dp.Logger.Warningf("No primary key found for table %s, skipping circular foreign key update", table)
		return nil
	}

	dp.Logger.Infof("Updating circular foreign keys of table %s", table)
	for _, fk := range dp.deferredFKs[table] {
		delete(dp.parentValues, fk.ReferencedTable)
		parents, err := dp.fetchParentValues(fk.ReferencedTable, fk.ReferencedColumn)
		if err != nil {
			return err
		}
		if len(parents) == 0 {
			dp.Logger.Warningf("Referenced table %s has no data, leaving %s.%s NULL", fk.ReferencedTable, table, fk.Column)
			continue
		}
		pool := pools.NewFKPool(fk.Column, parents)

		query := fmt.Sprintf("SELECT %s AS pk FROM %s WHERE %s IS NULL ORDER BY %s",
			quoteIdent(pkColumn), quoteIdent(table), quoteIdent(fk.Column), quoteIdent(pkColumn))
		pending, err := dp.DB.ExecuteQuery(query)
		if err != nil {
			return err
		}

		updateSQL := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
			quoteIdent(table), quoteIdent(fk.Column), quoteIdent(pkColumn))
		for i, row := range pending {
			if _, err := dp.DB.ExecuteStatement(updateSQL, pool.At(i), row["pk"]); err != nil {
				return errors.Wrapf(err, "updating %s.%s", table, fk.Column)
			}
		}
	}
	return nil
}

// calculateManyToManyRecords caps a join table at the number of distinct
// parent combinations, and at twice the configured row count
func (dp *DatabasePopulator) calculateManyToManyRecords(table string, set pools.Set, rows int) int {
	combinations := 1
	for _, fk := range dp.SchemaAnalyzer.ForeignKeys[table] {
		p, _ := set.Pool(fk.Column)
		if p.Len() == 0 {
			return 0
		}
		if combinations > 2*rows {
			break
		}
		combinations *= p.Len()
	}

	if combinations > 2*rows {
		return 2 * rows
	}
	return combinations
}

// tableSeed derives a per-table seed so tables do not share random streams
func tableSeed(seed int64, table string) int64 {
	h := fnv.New64a()
	h.Write([]byte(table))
	return seed ^ int64(h.Sum64())
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
