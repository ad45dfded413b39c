package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pmdminer/internal/config"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pmdminer.yaml")

	require.NoError(t, os.WriteFile(cfgPath, []byte(`
mining:
  ruleset: /rules/java-basic.xml
  output_dir: /tmp/out
analyzer:
  base_url: http://localhost:8090
`), 0o600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/rules/java-basic.xml", cfg.Mining.RulesetPath)
	assert.Equal(t, "/tmp/out", cfg.Mining.OutputDir)
	assert.Positive(t, cfg.Mining.Workers)
	assert.Equal(t, 4, cfg.Mining.QueueFactor)
	assert.Equal(t, "http://localhost:8090", cfg.Analyzer.BaseURL)
	assert.Equal(t, 2, cfg.Analyzer.MaxRetries)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pmdminer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
mining:
  ruleset: /rules/java-basic.xml
  output_dir: /tmp/out
`), 0o600))

	t.Setenv("PMDMINER_MINING_WORKERS", "7")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Mining.Workers)
}

func TestLoad_MissingRuleset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pmdminer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
mining:
  output_dir: /tmp/out
`), 0o600))

	_, err := config.Load(cfgPath)
	require.ErrorIs(t, err, config.ErrMissingRuleset)
}

func TestLoad_InvalidWorkers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pmdminer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
mining:
  ruleset: /rules/java-basic.xml
  output_dir: /tmp/out
  workers: 0
`), 0o600))

	_, err := config.Load(cfgPath)
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}
