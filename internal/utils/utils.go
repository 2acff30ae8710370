package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisCGH/generate-synthetic-data/internal/analyzer"
	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/populator"
	"github.com/ChrisCGH/generate-synthetic-data/internal/strategy"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed, color.Bold)
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()

	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("SYNTH_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

// LoadEnvironmentVariables loads environment variables from .env file and
// reports whether every connection variable is now set
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) bool {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s file: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	} else if _, err := os.Stat(envFile + ".sample"); err == nil {
		logger.Infof("No %s file found, but %s.sample exists. Consider copying it to %s.", envFile, envFile, envFile)
	} else {
		logger.Debugf("No %s file found, using existing environment variables", envFile)
	}

	var missingVars []string
	for _, v := range []string{"MYSQL_HOST", "MYSQL_USER", "MYSQL_PASSWORD", "MYSQL_DATABASE"} {
		if os.Getenv(v) == "" {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		logger.Debugf("Missing environment variables: %s", strings.Join(missingVars, ", "))
		return false
	}
	return true
}

// ValidateConnectionParams validates database connection parameters
func ValidateConnectionParams(host, user, password, database, port string, logger *logrus.Logger) bool {
	if host == "" {
		logger.Error("Database host is required")
		return false
	}

	if user == "" {
		logger.Error("Database user is required")
		return false
	}

	if password == "" { // Empty password is allowed
		logger.Warning("Database password is empty")
	}

	if database == "" {
		logger.Error("Database name is required")
		return false
	}

	if _, err := strconv.Atoi(port); err != nil {
		logger.Errorf("Invalid port number: %s", port)
		return false
	}

	return true
}

func rule(w io.Writer, width int) {
	fmt.Fprintln(w, strings.Repeat("=", width))
}

// PrintSummary prints a summary of the population process
func PrintSummary(w io.Writer, totalTables int, result models.PopulationResult) {
	fmt.Fprintln(w)
	rule(w, 50)
	heading.Fprintln(w, "DATABASE POPULATION SUMMARY")
	rule(w, 50)
	fmt.Fprintf(w, "Total tables processed: %d\n", totalTables)
	good.Fprintf(w, "Successfully populated tables: %d\n", len(result.SuccessfulTables))
	if len(result.FailedTables) > 0 {
		bad.Fprintf(w, "Failed tables: %d\n", len(result.FailedTables))
	} else {
		fmt.Fprintf(w, "Failed tables: 0\n")
	}
	fmt.Fprintf(w, "Total records inserted: %d\n", result.TotalRecords)

	if len(result.FailedTables) > 0 {
		fmt.Fprintln(w, "\nFailed tables:")
		for _, table := range result.FailedTables {
			fmt.Fprintf(w, "  - %s\n", table)
		}
	}

	rule(w, 50)
}

// PrintSchemaAnalysis prints a detailed analysis of the database schema
func PrintSchemaAnalysis(w io.Writer, sa *analyzer.SchemaAnalyzer) {
	orderedTables, circularTables := sa.GetTableInsertionOrder()

	fmt.Fprintln(w)
	rule(w, 80)
	heading.Fprintln(w, "DATABASE SCHEMA ANALYSIS REPORT")
	rule(w, 80)

	withUnique := 0
	for _, table := range sa.Tables {
		if len(sa.UniqueConstraints[table]) > 0 {
			withUnique++
		}
	}

	heading.Fprintln(w, "\n1. BASIC STATISTICS")
	fmt.Fprintf(w, "   Total tables: %d\n", len(sa.Tables))
	fmt.Fprintf(w, "   Total views: %d\n", len(sa.Views))
	fmt.Fprintf(w, "   Tables with foreign keys: %d\n", len(sa.ForeignKeys))
	fmt.Fprintf(w, "   Tables with unique constraints: %d\n", withUnique)
	fmt.Fprintf(w, "   Many-to-many relationship tables: %d\n", len(sa.ManyToManyTables))
	fmt.Fprintf(w, "   Tables in circular dependencies: %d\n", len(circularTables))

	if len(circularTables) > 0 {
		heading.Fprintln(w, "\n2. CIRCULAR DEPENDENCIES")
		fmt.Fprintf(w, "   Tables involved: %s\n", strings.Join(sortedKeys(circularTables), ", "))
		for _, dep := range sa.DirectCircularDeps {
			fmt.Fprintf(w, "     %s <-> %s\n", dep[0], dep[1])
		}
	}

	heading.Fprintln(w, "\n3. OVERLAPPING UNIQUE CONSTRAINTS")
	found := false
	for _, table := range sa.Tables {
		constraints := sa.UniqueConstraints[table]
		for _, component := range overlap.Components(constraints) {
			found = true
			fmt.Fprintf(w, "   %s: %s\n", table, strings.Join(component, " ~ "))
		}
		for _, g := range overlap.DetectGroups(constraints) {
			fmt.Fprintf(w, "     group %s shares (%s)\n", strings.Join(g.Names(), ", "), strings.Join(overlap.SharedColumns(g), ", "))
		}
	}
	if !found {
		fmt.Fprintln(w, "   None")
	}

	heading.Fprintln(w, "\n4. TABLE INSERTION ORDER")
	for i, table := range orderedTables {
		fmt.Fprintf(w, "   %3d. %s (%s)\n", i+1, table, sa.Category(table, circularTables))
	}

	fmt.Fprintln(w)
	rule(w, 80)
}

// PrintPlanReport prints the strategy chosen for every table
func PrintPlanReport(w io.Writer, plans []populator.TablePlan) {
	fmt.Fprintln(w)
	rule(w, 80)
	heading.Fprintln(w, "GENERATION PLAN")
	rule(w, 80)

	for _, tp := range plans {
		res := tp.Result
		if res == nil {
			fmt.Fprintf(w, "%s: nothing to insert\n", tp.Table)
			continue
		}

		line := fmt.Sprintf("%s: %s, %d rows, %d distinct", tp.Table, res.State, len(res.Rows), res.Outcome.Distinct)
		switch res.Outcome.Kind {
		case strategy.Succeeded:
			good.Fprintln(w, line)
		case strategy.SucceededWithDuplicates:
			warn.Fprintln(w, line)
		default:
			bad.Fprintf(w, "%s: failed: %v\n", tp.Table, res.Outcome.Reason)
		}

		if p := res.Overlap; p != nil {
			fmt.Fprintf(w, "    group %s, shared (%s), fanout %d, %d combinations\n",
				strings.Join(p.Group.Names(), ", "), strings.Join(p.Shared, ", "), p.Fanout, p.Combinations)
		}
		if res.Constraint != nil {
			fmt.Fprintf(w, "    constraint %s (%s)\n", res.Constraint.Name, strings.Join(res.Constraint.Columns, ", "))
		}
		dups := res.Outcome.ConstraintDuplicates
		for _, name := range sortedKeys(dups) {
			if dups[name] > 0 {
				warn.Fprintf(w, "    %s would reject %d rows\n", name, dups[name])
			}
		}
	}

	rule(w, 80)
}

// PrintDiagnosticsSummary counts the warning and error events of a run per
// table and kind. Info events are left to the log.
func PrintDiagnosticsSummary(w io.Writer, events []diagnostics.Event) {
	counts := make(map[string]int)
	severities := make(map[string]diagnostics.Severity)
	for _, e := range events {
		if e.Severity == diagnostics.Info {
			continue
		}
		key := fmt.Sprintf("%s: %s", e.Table, e.Kind)
		counts[key]++
		severities[key] = e.Severity
	}
	if len(counts) == 0 {
		return
	}

	fmt.Fprintln(w)
	heading.Fprintln(w, "DIAGNOSTICS")
	for _, key := range sortedKeys(counts) {
		line := fmt.Sprintf("  %s (%d)", key, counts[key])
		if severities[key] == diagnostics.Error {
			bad.Fprintln(w, line)
		} else {
			warn.Fprintln(w, line)
		}
	}
}

type planDump struct {
	Table      string                   `yaml:"table"`
	Category   string                   `yaml:"category"`
	Strategy   string                   `yaml:"strategy,omitempty"`
	Outcome    string                   `yaml:"outcome,omitempty"`
	Distinct   int                      `yaml:"distinct"`
	Group      []string                 `yaml:"group,omitempty"`
	Shared     []string                 `yaml:"shared,omitempty"`
	Fanout     int                      `yaml:"fanout,omitempty"`
	Constraint string                   `yaml:"constraint,omitempty"`
	Collisions map[string]int           `yaml:"constraint_duplicates,omitempty"`
	Failures   map[string]string        `yaml:"failures,omitempty"`
	Rows       []map[string]interface{} `yaml:"rows"`
}

// WritePlansYAML dumps the plans, controlled values included, as YAML
func WritePlansYAML(w io.Writer, plans []populator.TablePlan) error {
	dumps := make([]planDump, 0, len(plans))
	for _, tp := range plans {
		d := planDump{Table: tp.Table, Category: tp.Category.String()}
		if res := tp.Result; res != nil {
			d.Strategy = res.State.String()
			d.Outcome = res.Outcome.Kind.String()
			d.Distinct = res.Outcome.Distinct
			d.Collisions = res.Outcome.ConstraintDuplicates
			if res.Overlap != nil {
				d.Group = res.Overlap.Group.Names()
				d.Shared = res.Overlap.Shared
				d.Fanout = res.Overlap.Fanout
			}
			if res.Constraint != nil {
				d.Constraint = res.Constraint.Name
			}
			if len(res.Failures) > 0 {
				d.Failures = make(map[string]string, len(res.Failures))
				for state, err := range res.Failures {
					d.Failures[state.String()] = err.Error()
				}
			}
			for _, row := range res.Rows {
				out := make(map[string]interface{}, len(row))
				for k, v := range row {
					if b, ok := v.([]byte); ok {
						v = string(b)
					}
					out[k] = v
				}
				d.Rows = append(d.Rows, out)
			}
		}
		dumps = append(dumps, d)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dumps); err != nil {
		return err
	}
	return enc.Close()
}

// QueryExecutor runs a query and returns the rows as column maps
type QueryExecutor interface {
	ExecuteQuery(query string, params ...interface{}) ([]map[string]interface{}, error)
}

// VerifyTablePopulation verifies that all tables have at least the minimum number of records
func VerifyTablePopulation(db QueryExecutor, tables []string, minRecords int, logger *logrus.Logger) models.VerificationResult {
	logger.Infof("Verifying that all tables have at least %d record(s)...", minRecords)

	result := models.VerificationResult{PartiallyPopulatedTables: make(map[string]int)}

	for _, table := range tables {
		rows, err := db.ExecuteQuery(fmt.Sprintf("SELECT COUNT(*) AS count FROM `%s`", strings.ReplaceAll(table, "`", "``")))
		if err != nil || len(rows) == 0 {
			logger.Warningf("Could not verify record count for table: %s", table)
			result.EmptyTables = append(result.EmptyTables, table)
			continue
		}

		count, err := strconv.ParseInt(fmt.Sprintf("%v", rows[0]["count"]), 10, 64)
		if err != nil {
			logger.Warningf("Could not parse count for table %s: %v", table, err)
			result.EmptyTables = append(result.EmptyTables, table)
			continue
		}

		if count == 0 {
			logger.Warningf("Table %s has no records", table)
			result.EmptyTables = append(result.EmptyTables, table)
		} else if count < int64(minRecords) {
			logger.Warningf("Table %s has only %d/%d expected records", table, count, minRecords)
			result.PartiallyPopulatedTables[table] = int(count)
		}
	}

	result.Success = len(result.EmptyTables) == 0 && len(result.PartiallyPopulatedTables) == 0
	if result.Success {
		logger.Info("Verification successful: All tables have at least the minimum number of records")
	}
	return result
}

// PrintVerificationResults prints the results of the table population verification
func PrintVerificationResults(w io.Writer, result models.VerificationResult, minRecords int) {
	fmt.Fprintln(w)
	rule(w, 50)
	heading.Fprintln(w, "TABLE POPULATION VERIFICATION RESULTS")
	rule(w, 50)

	if result.Success {
		good.Fprintf(w, "All tables have at least %d record(s)\n", minRecords)
		rule(w, 50)
		return
	}

	if len(result.EmptyTables) > 0 {
		bad.Fprintf(w, "%d tables have no records:\n", len(result.EmptyTables))
		for _, table := range result.EmptyTables {
			fmt.Fprintf(w, "  - %s\n", table)
		}
	}

	if len(result.PartiallyPopulatedTables) > 0 {
		warn.Fprintf(w, "%d tables are partially populated:\n", len(result.PartiallyPopulatedTables))
		for _, table := range sortedKeys(result.PartiallyPopulatedTables) {
			fmt.Fprintf(w, "  - %s: %d/%d records\n", table, result.PartiallyPopulatedTables[table], minRecords)
		}
	}

	rule(w, 50)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
