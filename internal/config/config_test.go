package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisCGH/generate-synthetic-data/internal/overlap"
	"github.com/ChrisCGH/generate-synthetic-data/internal/pools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Rows)
	assert.Equal(t, int64(1), cfg.Seed)

	pairing, err := cfg.PairingMode()
	require.NoError(t, err)
	assert.Equal(t, overlap.PairZip, pairing)
	assert.Equal(t, 10, cfg.RowsFor("anything"))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SYNTH_ROWS", "25")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Rows)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
seed: 7
rows: 50
pairing: cycle
tables:
  Orders:
    rows: 20
    columns:
      Status:
        values: [new, paid, new, shipped]
      bucket:
        range: { start: 1, end: 5, step: 2 }
    fk_population_rate:
      coupon_id: 0.25
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 20, cfg.RowsFor("Orders"))
	assert.Equal(t, 50, cfg.RowsFor("customers"))

	pairing, err := cfg.PairingMode()
	require.NoError(t, err)
	assert.Equal(t, overlap.PairCycle, pairing)

	columns := []string{"id", "Status", "bucket", "coupon_id"}
	assert.Equal(t, map[string]float64{"coupon_id": 0.25}, cfg.PopulationRates("Orders", columns))

	explicit, err := cfg.ExplicitPools("Orders", columns)
	require.NoError(t, err)
	set := pools.Set{}
	for _, p := range explicit {
		set.Add(p)
	}

	status, ok := set.Pool("Status")
	require.True(t, ok)
	assert.Equal(t, pools.ExplicitValues, status.Kind)
	assert.Equal(t, []interface{}{"new", "paid", "shipped"}, status.Values())

	bucket, ok := set.Pool("bucket")
	require.True(t, ok)
	assert.Equal(t, pools.ExplicitRange, bucket.Kind)
	assert.Equal(t, []interface{}{int64(1), int64(3), int64(5)}, bucket.Values())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "rate above one", content: "tables:\n  t:\n    fk_population_rate:\n      a: 1.5\n"},
		{name: "negative rows", content: "rows: -3\n"},
		{name: "unknown pairing", content: "pairing: shuffle\n"},
		{name: "column without values", content: "tables:\n  t:\n    columns:\n      a:\n        values: []\n"},
		{name: "values and range", content: "tables:\n  t:\n    columns:\n      a:\n        values: [1]\n        range: { start: 1, end: 2 }\n"},
		{name: "inverted range", content: "tables:\n  t:\n    columns:\n      a:\n        range: { start: 5, end: 2 }\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
