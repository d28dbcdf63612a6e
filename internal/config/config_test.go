package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "allergen-risk.db", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.5, cfg.Risk.TraceWeight, 0.001)
	assert.False(t, cfg.Risk.ProximityEnabled)
	assert.InDelta(t, 0.42, cfg.Risk.ProximityConfidence, 0.001)
	assert.InDelta(t, 1.0, cfg.CrossContact.PriorAlpha, 0.001)
	assert.InDelta(t, 1.0, cfg.CrossContact.PriorBeta, 0.001)
	assert.Equal(t, "https://world.openfoodfacts.org", cfg.OpenFoodFacts.BaseURL)
	assert.InDelta(t, 1.0, cfg.OpenFoodFacts.TracesConfidence, 0.001)
	assert.InDelta(t, 0.6, cfg.OpenFoodFacts.MayContainConfidence, 0.001)
	assert.Equal(t, "ocrspace", cfg.OCR.Provider)
	assert.InDelta(t, 1.0, cfg.OCR.ContainsConfidence, 0.001)
	assert.True(t, cfg.Ingredients.Enabled)
	assert.InDelta(t, 0.95, cfg.Ingredients.Confidence, 0.001)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/allergens
risk:
  trace_weight: 0.3
  proximity_enabled: true
cross_contact:
  prior_alpha: 2
  prior_beta: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/allergens", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.3, cfg.Risk.TraceWeight, 0.001)
	assert.True(t, cfg.Risk.ProximityEnabled)
	assert.InDelta(t, 2.0, cfg.CrossContact.PriorAlpha, 0.001)
	assert.InDelta(t, 8.0, cfg.CrossContact.PriorBeta, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
risk:
  trace_weight: 0.3
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ALLERGEN_RISK_TRACE_WEIGHT", "0.7")
	t.Setenv("ALLERGEN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.7, cfg.Risk.TraceWeight, 0.001)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("risk: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "allergen-risk.db"
	cfg.Risk.TraceWeight = 0.5
	cfg.Risk.ProximityConfidence = 0.42
	cfg.CrossContact.PriorAlpha = 1
	cfg.CrossContact.PriorBeta = 1
	cfg.OCR.Provider = "ocrspace"
	cfg.OCR.ContainsConfidence = 1
	cfg.OpenFoodFacts.TracesConfidence = 1
	cfg.OpenFoodFacts.MayContainConfidence = 0.6
	cfg.Ingredients.Confidence = 0.95
	cfg.Batch.MaxConcurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	for _, mode := range []string{"assess", "batch", "serve"} {
		assert.NoError(t, validDefaults().Validate(mode), mode)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateBatchConcurrency(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrency = 0
	assert.ErrorContains(t, cfg.Validate("batch"), "batch.max_concurrency")

	cfg.Batch.MaxConcurrency = 65
	assert.ErrorContains(t, cfg.Validate("batch"), "batch.max_concurrency")

	cfg.Batch.MaxConcurrency = 64
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"trace weight", func(c *Config) { c.Risk.TraceWeight = 1.5 }, "risk.trace_weight"},
		{"proximity", func(c *Config) { c.Risk.ProximityConfidence = -0.1 }, "risk.proximity_confidence"},
		{"prior", func(c *Config) { c.CrossContact.PriorBeta = 0 }, "prior_alpha and prior_beta"},
		{"ocr confidence", func(c *Config) { c.OCR.ContainsConfidence = 2 }, "ocr.contains_confidence"},
		{"off confidence", func(c *Config) { c.OpenFoodFacts.TracesConfidence = -1 }, "openfoodfacts confidences"},
		{"zero ocr confidence", func(c *Config) { c.OCR.ContainsConfidence = 0 }, "ocr.contains_confidence must be within (0,1]"},
		{"zero off confidence", func(c *Config) { c.OpenFoodFacts.MayContainConfidence = 0 }, "openfoodfacts confidences"},
		{"zero ingredients confidence", func(c *Config) { c.Ingredients.Confidence = 0 }, "ingredients.confidence"},
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"database url", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url is required"},
		{"ocr provider", func(c *Config) { c.OCR.Provider = "mistral" }, "ocr.provider"},
		{"anthropic key", func(c *Config) { c.OCR.Provider = "anthropic" }, "anthropic.key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("assess")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
