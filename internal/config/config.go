package config

import (
	"strings"

	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the generation configuration. Connection settings stay in flags
// and MYSQL_* environment variables.
type Config struct {
	Seed    int64                   `mapstructure:"seed"`
	Rows    int                     `mapstructure:"rows" validate:"gte=0"`
	Pairing string                  `mapstructure:"pairing" validate:"omitempty,oneof=zip cycle"`
	Tables  map[string]*TableConfig `mapstructure:"tables" validate:"dive"`
}

// TableConfig overrides generation for one table
type TableConfig struct {
	Rows             *int                     `mapstructure:"rows" validate:"omitempty,gte=0"`
	Columns          map[string]*ColumnConfig `mapstructure:"columns" validate:"dive"`
	FKPopulationRate map[string]float64       `mapstructure:"fk_population_rate" validate:"dive,gte=0,lte=1"`
}

// ColumnConfig makes a column controlled through explicit values or a range
type ColumnConfig struct {
	Values []interface{} `mapstructure:"values"`
	Range  *RangeConfig  `mapstructure:"range"`
}

// RangeConfig is an inclusive integer range
type RangeConfig struct {
	Start int64 `mapstructure:"start"`
	End   int64 `mapstructure:"end" validate:"gtefield=Start"`
	Step  int64 `mapstructure:"step" validate:"gte=0"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{Seed: 1, Rows: 10, Pairing: "zip", Tables: map[string]*TableConfig{}}
}

// Load reads the configuration file at path. An empty path yields the
// defaults, still overridable through SYNTH_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("seed", def.Seed)
	v.SetDefault("rows", def.Rows)
	v.SetDefault("pairing", def.Pairing)
	v.SetEnvPrefix("SYNTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s failed", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}
	if cfg.Tables == nil {
		cfg.Tables = map[string]*TableConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and column definitions
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	for table, tc := range c.Tables {
		if tc == nil {
			continue
		}
		for column, cc := range tc.Columns {
			if cc == nil || (len(cc.Values) == 0 && cc.Range == nil) {
				return errors.Errorf("invalid config: column %s.%s needs values or a range", table, column)
			}
			if len(cc.Values) > 0 && cc.Range != nil {
				return errors.Errorf("invalid config: column %s.%s has both values and a range", table, column)
			}
		}
	}
	return nil
}

// PairingMode returns the configured shared column pairing
func (c *Config) PairingMode() (overlap.Pairing, error) {
	return overlap.ParsePairing(c.Pairing)
}

// Viper lowercases every key, so table and column names from the file are
// matched case-insensitively.
func (c *Config) table(name string) *TableConfig {
	if tc, ok := c.Tables[strings.ToLower(name)]; ok {
		return tc
	}
	return nil
}

func resolveColumn(key string, columns []string) string {
	for _, col := range columns {
		if strings.EqualFold(col, key) {
			return col
		}
	}
	return key
}

// RowsFor returns the row count for a table, falling back to the global count
func (c *Config) RowsFor(table string) int {
	if tc := c.table(table); tc != nil && tc.Rows != nil {
		return *tc.Rows
	}
	return c.Rows
}

// PopulationRates returns the FK population rates of a table keyed by the
// table's own column names
func (c *Config) PopulationRates(table string, columns []string) map[string]float64 {
	tc := c.table(table)
	if tc == nil || len(tc.FKPopulationRate) == 0 {
		return nil
	}
	rates := make(map[string]float64, len(tc.FKPopulationRate))
	for key, rate := range tc.FKPopulationRate {
		rates[resolveColumn(key, columns)] = rate
	}
	return rates
}

// ExplicitPools builds the configured pools of a table, named after the
// table's own column names
func (c *Config) ExplicitPools(table string, columns []string) ([]*pools.Pool, error) {
	tc := c.table(table)
	if tc == nil {
		return nil, nil
	}

	var out []*pools.Pool
	for key, cc := range tc.Columns {
		column := resolveColumn(key, columns)
		if cc.Range != nil {
			p, err := pools.NewRangePool(column, cc.Range.Start, cc.Range.End, cc.Range.Step)
			if err != nil {
				return nil, errors.Wrapf(err, "table %s", table)
			}
			out = append(out, p)
			continue
		}
		out = append(out, pools.NewValuesPool(column, cc.Values))
	}
	return out, nil
}
