package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ChrisCGH/generate-synthetic-data/internal/analyzer"
	"github.com/ChrisCGH/generate-synthetic-data/internal/config"
	"github.com/ChrisCGH/generate-synthetic-data/internal/connector"
	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/internal/generator"
	"github.com/ChrisCGH/generate-synthetic-data/internal/populator"
	"github.com/ChrisCGH/generate-synthetic-data/internal/strategy"
	"github.com/ChrisCGH/generate-synthetic-data/internal/utils"
	"github.com/spf13/cobra"
)

func main() {
	var (
		host        string
		user        string
		password    string
		database    string
		port        string
		records     int
		seed        int64
		configFile  string
		minRecords  int
		envFile     string
		logLevel    string
		analyzeOnly bool
		planOnly    bool
		verify      bool
	)

	rootCmd := &cobra.Command{
		Use:   "generate-synthetic-data",
		Short: "Generate synthetic rows that respect overlapping unique constraints",
		Long: `Synthetic Data Generator

Populates a MySQL schema in foreign key order. Tables whose composite
UNIQUE constraints share columns get pre-allocated, collision-minimizing
values for their controlled columns; everything else is faked.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.SetupLogging(logLevel)

			// Plan-only output on stdout is pure YAML
			var report io.Writer = os.Stdout
			if planOnly {
				report = os.Stderr
				logger.SetOutput(os.Stderr)
			}
			utils.LoadEnvironmentVariables(envFile, logger)

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("records") {
				cfg.Rows = records
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			pairing, err := cfg.PairingMode()
			if err != nil {
				return err
			}

			db := connector.NewDatabaseConnector(host, user, password, database, port, logger)
			if !utils.ValidateConnectionParams(db.Host, db.User, db.Password, db.Database, db.Port, logger) {
				return fmt.Errorf("invalid connection parameters")
			}
			if err := db.Connect(); err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Disconnect()

			schemaAnalyzer := analyzer.NewSchemaAnalyzer(db, logger)
			if err := schemaAnalyzer.AnalyzeSchema(); err != nil {
				return fmt.Errorf("failed to analyze schema: %w", err)
			}

			utils.PrintSchemaAnalysis(report, schemaAnalyzer)

			if analyzeOnly {
				logger.Info("Analyze-only mode, exiting without populating data")
				return nil
			}

			if len(schemaAnalyzer.Tables) == 0 {
				return fmt.Errorf("no tables found in database %s", db.Database)
			}

			events := &diagnostics.Recorder{}
			dbPopulator := populator.NewDatabasePopulator(
				db,
				schemaAnalyzer,
				generator.NewDataGenerator(cfg.Seed, logger),
				strategy.NewPlanner(pairing, diagnostics.Tee(diagnostics.NewLogSink(logger), events)),
				cfg,
				logger,
			)
			dbPopulator.PlanOnly = planOnly

			logger.Info("Starting database population...")
			success := dbPopulator.PopulateDatabase()

			if planOnly {
				utils.PrintPlanReport(report, dbPopulator.Plans)
				utils.PrintDiagnosticsSummary(report, events.Events())
				if err := utils.WritePlansYAML(os.Stdout, dbPopulator.Plans); err != nil {
					return err
				}
				if !success {
					return fmt.Errorf("some tables could not be planned")
				}
				return nil
			}

			utils.PrintPlanReport(os.Stdout, dbPopulator.Plans)
			utils.PrintDiagnosticsSummary(os.Stdout, events.Events())
			utils.PrintSummary(os.Stdout, len(schemaAnalyzer.Tables), dbPopulator.Result())

			verificationSuccess := true
			if verify {
				result := utils.VerifyTablePopulation(db, schemaAnalyzer.Tables, minRecords, logger)
				utils.PrintVerificationResults(os.Stdout, result, minRecords)
				verificationSuccess = result.Success
			}

			if !success || !verificationSuccess {
				return fmt.Errorf("population did not complete successfully")
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&host, "host", "H", "", "MySQL host (default: localhost)")
	rootCmd.Flags().StringVarP(&user, "user", "u", "", "MySQL user (default: root)")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "MySQL password")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "MySQL database name")
	rootCmd.Flags().StringVarP(&port, "port", "P", "", "MySQL port (default: 3306)")
	rootCmd.Flags().IntVarP(&records, "records", "r", 10, "Number of records to generate per table")
	rootCmd.Flags().Int64Var(&seed, "seed", 1, "Seed for every random choice")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML generation config")
	rootCmd.Flags().IntVarP(&minRecords, "min-records", "n", 1, "Minimum number of records each table should have for verification")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&analyzeOnly, "analyze-only", "a", false, "Only analyze the database schema without populating data")
	rootCmd.Flags().BoolVar(&planOnly, "plan-only", false, "Plan every table and print the plans as YAML without writing")
	rootCmd.Flags().BoolVarP(&verify, "verify", "v", false, "Verify that all tables have been populated with the expected number of records")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
