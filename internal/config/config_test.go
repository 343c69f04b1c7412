package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/bids.db", cfg.Database.Path)
	assert.Equal(t, "SAR", cfg.Pipeline.BaseCurrency)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 60, cfg.Pipeline.FuzzyThreshold)
	assert.Equal(t, []string{"EXT", "ADD"}, cfg.Pipeline.ExtraPrefixes)
	assert.Equal(t, 4, cfg.Pipeline.MatchWorkers)
	assert.Equal(t, 15*time.Minute, cfg.Pipeline.ClosedRunRetention)
	assert.Equal(t, 1, cfg.Sheet.HeaderRows)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9090
pipeline:
  base_currency: usd
  stage_timeout: 5s
  fuzzy_threshold: 75
  extra_prefixes: [VAR]
sheet:
  header_rows: 2
  sheet_name: Pricing
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "USD", cfg.Pipeline.BaseCurrency)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 75, cfg.Pipeline.FuzzyThreshold)
	assert.Equal(t, []string{"VAR"}, cfg.Pipeline.ExtraPrefixes)
	assert.Equal(t, 2, cfg.Sheet.HeaderRows)
	assert.Equal(t, "Pricing", cfg.Sheet.SheetName)
	// untouched sections keep their defaults
	assert.Equal(t, "data/bids.db", cfg.Database.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "server:\n  port: 9090\n")
	t.Setenv("BIDRECON_SERVER_PORT", "7070")
	t.Setenv("BIDRECON_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("BIDRECON_BASE_CURRENCY", "aed")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "AED", cfg.Pipeline.BaseCurrency)
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "BIDRECON_REFERENCE_TABLES=/etc/bidrecon/tables.yaml\n")
	t.Cleanup(func() { os.Unsetenv("BIDRECON_REFERENCE_TABLES") })

	cfg, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "/etc/bidrecon/tables.yaml", cfg.Pipeline.ReferenceTables)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err, "a missing env file is ignored")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad currency", "pipeline:\n  base_currency: RIYAL\n", "pipeline.base_currency"},
		{"bad threshold", "pipeline:\n  fuzzy_threshold: 101\n", "pipeline.fuzzy_threshold"},
		{"no workers", "pipeline:\n  match_workers: 0\n", "pipeline.match_workers"},
		{"zero timeout", "pipeline:\n  stage_timeout: 0s\n", "pipeline.stage_timeout"},
		{"negative header rows", "sheet:\n  header_rows: -1\n", "sheet.header_rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "server: [unclosed\n"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestToContainerConfig(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	cfg.Pipeline.FuzzyThreshold = 70
	cfg.Sheet.SheetName = "Pricing"

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, "SAR", cc.Pipeline.Run.BaseCurrency)
	assert.Equal(t, 70, cc.Pipeline.Run.Matcher.FuzzyThreshold)
	assert.Equal(t, 4, cc.Pipeline.Run.Matcher.Workers)
	assert.Equal(t, 15*time.Minute, cc.Pipeline.ClosedRunRetention)
	assert.Equal(t, "Pricing", cc.Sheet.SheetName)
}
