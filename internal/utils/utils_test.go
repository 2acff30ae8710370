package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/populator"
	"github.com/ChrisCGH/generate-synthetic-data/internal/strategy"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

func createTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func TestSetupLogging(t *testing.T) {
	t.Setenv("SYNTH_LOG_LEVEL", "")

	logger := SetupLogging("")
	if logger.Level != logrus.InfoLevel {
		t.Errorf("Expected default log level to be info, got %s", logger.Level)
	}

	for input, expected := range map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"invalid": logrus.InfoLevel,
	} {
		if logger := SetupLogging(input); logger.Level != expected {
			t.Errorf("Expected log level %s for %q, got %s", expected, input, logger.Level)
		}
	}

	t.Setenv("SYNTH_LOG_LEVEL", "warn")
	if logger := SetupLogging(""); logger.Level != logrus.WarnLevel {
		t.Errorf("Expected log level from SYNTH_LOG_LEVEL to be warn, got %s", logger.Level)
	}
}

func TestValidateConnectionParams(t *testing.T) {
	logger := createTestLogger()

	if !ValidateConnectionParams("localhost", "user", "password", "database", "3306", logger) {
		t.Error("Expected validation to pass with valid parameters")
	}
	if ValidateConnectionParams("", "user", "password", "database", "3306", logger) {
		t.Error("Expected validation to fail with missing host")
	}
	if ValidateConnectionParams("localhost", "", "password", "database", "3306", logger) {
		t.Error("Expected validation to fail with missing user")
	}
	if ValidateConnectionParams("localhost", "user", "password", "", "3306", logger) {
		t.Error("Expected validation to fail with missing database")
	}
	if ValidateConnectionParams("localhost", "user", "password", "database", "not-a-port", logger) {
		t.Error("Expected validation to fail with invalid port")
	}
	if !ValidateConnectionParams("localhost", "user", "", "database", "3306", logger) {
		t.Error("Expected validation to pass with empty password")
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, 3, models.PopulationResult{
		SuccessfulTables: []string{"users", "orders"},
		FailedTables:     []string{"audit"},
		TotalRecords:     30,
	})

	out := buf.String()
	for _, want := range []string{"Successfully populated tables: 2", "Failed tables: 1", "Total records inserted: 30", "  - audit"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, out)
		}
	}
}

func overlapPlans() []populator.TablePlan {
	rows := []models.RowAssignment{
		{"x": 1, "y": 10, "z": 100},
		{"x": 1, "y": 20, "z": 200},
		{"x": 1, "y": 10, "z": 300},
	}
	group := overlap.Group{Constraints: []models.UniqueConstraint{
		{Name: "C1", Table: "t", Columns: []string{"x", "y"}},
		{Name: "C2", Table: "t", Columns: []string{"x", "z"}},
	}}

	return []populator.TablePlan{
		{
			Table:    "t",
			Category: models.Standalone,
			Result: &strategy.Result{
				State:   strategy.TryOverlapping,
				Outcome: strategy.Outcome{Kind: strategy.Succeeded, Distinct: 3, ConstraintDuplicates: map[string]int{"C1": 1, "C2": 0}},
				Rows:    rows,
				Overlap: &overlap.Plan{Table: "t", Requested: 3, Group: group, Shared: []string{"x"}, Fanout: 3, Combinations: 3, Rows: rows, Distinct: 3},
			},
		},
		{
			Table:    "u",
			Category: models.Dependent,
			Result: &strategy.Result{
				State:    strategy.RandomAssignment,
				Outcome:  strategy.Outcome{Kind: strategy.SucceededWithDuplicates, Distinct: 1},
				Rows:     []models.RowAssignment{{"code": []byte("a")}, {"code": []byte("a")}},
				Failures: map[strategy.State]error{strategy.TryOverlapping: errors.New("no overlapping unique constraints")},
			},
		},
	}
}

func TestPrintPlanReport(t *testing.T) {
	var buf bytes.Buffer
	PrintPlanReport(&buf, overlapPlans())

	out := buf.String()
	for _, want := range []string{
		"t: overlapping, 3 rows, 3 distinct",
		"group C1, C2, shared (x), fanout 3, 3 combinations",
		"C1 would reject 1 rows",
		"u: random, 2 rows, 1 distinct",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWritePlansYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlansYAML(&buf, overlapPlans()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded []map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Plan dump is not valid YAML: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("Expected 2 plans, got %d", len(decoded))
	}
	if decoded[0]["strategy"] != "overlapping" || decoded[0]["fanout"] != 3 {
		t.Errorf("Unexpected first plan: %v", decoded[0])
	}
	if dups, ok := decoded[0]["constraint_duplicates"].(map[string]interface{}); !ok || dups["C1"] != 1 {
		t.Errorf("Expected per-constraint duplicates in the first plan, got %v", decoded[0]["constraint_duplicates"])
	}
	if decoded[1]["failures"] == nil {
		t.Error("Expected failures to be dumped for the random plan")
	}
	if !strings.Contains(buf.String(), "code: a") {
		t.Errorf("Expected byte values to be dumped as strings, got:\n%s", buf.String())
	}
}

func TestPrintDiagnosticsSummary(t *testing.T) {
	rec := &diagnostics.Recorder{}
	sink := diagnostics.Tee(diagnostics.Discard, rec)
	sink.Emit(diagnostics.Event{Kind: diagnostics.GroupDiscovered, Table: "orders"})
	sink.Emit(diagnostics.Event{Kind: diagnostics.StrategyFailed, Severity: diagnostics.Warning, Table: "orders"})
	sink.Emit(diagnostics.Event{Kind: diagnostics.StrategyFailed, Severity: diagnostics.Warning, Table: "orders"})
	sink.Emit(diagnostics.Event{Kind: diagnostics.PoolError, Severity: diagnostics.Error, Table: "audit"})

	var buf bytes.Buffer
	PrintDiagnosticsSummary(&buf, rec.Events())

	out := buf.String()
	for _, want := range []string{"DIAGNOSTICS", "audit: pool_error (1)", "orders: strategy_failed (2)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "group_discovered") {
		t.Errorf("Expected info events to be left out, got:\n%s", out)
	}

	buf.Reset()
	PrintDiagnosticsSummary(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("Expected no output without warnings, got:\n%s", buf.String())
	}
}

type fakeExecutor map[string]interface{}

func (f fakeExecutor) ExecuteQuery(query string, params ...interface{}) ([]map[string]interface{}, error) {
	for table, count := range f {
		if strings.Contains(query, "`"+table+"`") {
			if count == nil {
				return nil, errors.New("table missing")
			}
			return []map[string]interface{}{{"count": count}}, nil
		}
	}
	return nil, nil
}

func TestVerifyTablePopulation(t *testing.T) {
	db := fakeExecutor{"users": int64(10), "orders": "3", "audit": int64(0), "gone": nil}

	result := VerifyTablePopulation(db, []string{"users", "orders", "audit", "gone"}, 5, createTestLogger())

	if result.Success {
		t.Error("Expected verification to fail")
	}
	if strings.Join(result.EmptyTables, ",") != "audit,gone" {
		t.Errorf("Expected audit and gone to be empty, got %v", result.EmptyTables)
	}
	if result.PartiallyPopulatedTables["orders"] != 3 {
		t.Errorf("Expected orders to be partially populated with 3, got %v", result.PartiallyPopulatedTables)
	}

	var buf bytes.Buffer
	PrintVerificationResults(&buf, result, 5)
	if !strings.Contains(buf.String(), "orders: 3/5 records") {
		t.Errorf("Unexpected verification output:\n%s", buf.String())
	}

	result = VerifyTablePopulation(fakeExecutor{"users": int64(10)}, []string{"users"}, 5, createTestLogger())
	if !result.Success {
		t.Error("Expected verification to pass")
	}
}
