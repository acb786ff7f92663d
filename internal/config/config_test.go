package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "audit.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.InDelta(t, 0.85, cfg.Scorer.ComplianceTarget, 0.001)
	assert.Equal(t, 5, cfg.Corpus.ShingleSize)
	assert.Equal(t, 128, cfg.Corpus.MinHashSize)
	assert.Equal(t, 32, cfg.Corpus.Bands)
	assert.InDelta(t, 0.8, cfg.Corpus.SimilarityThreshold, 0.001)
	assert.Equal(t, 3, cfg.Corpus.RepetitionCeiling)
	assert.Equal(t, 5000, cfg.Corpus.MaxDocuments)
	assert.Equal(t, 6*time.Hour, cfg.Authority.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Authority.LookupTimeout)
	assert.InDelta(t, 5.0, cfg.Authority.RatePerSecond, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/audit
log:
  level: debug
  format: console
server:
  port: 9090
corpus:
  similarity_threshold: 0.9
registry:
  rules_path: rules.yaml
  targets_path: targets.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.9, cfg.Corpus.SimilarityThreshold, 0.001)
	assert.Equal(t, "rules.yaml", cfg.Registry.RulesPath)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Corpus.ShingleSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("AUDIT_STORE_DRIVER", "postgres")
	t.Setenv("AUDIT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("AUDIT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config populated like Load with no file present.
func validDefaults(t *testing.T) *Config {
	chTempDir(t)
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidateAudit_RequiresInputDir(t *testing.T) {
	cfg := validDefaults(t)

	err := cfg.Validate("audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit.input_dir is required")

	cfg.Audit.InputDir = "docs"
	assert.NoError(t, cfg.Validate("audit"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateAuthority_RequiresSourceURLs(t *testing.T) {
	cfg := validDefaults(t)

	err := cfg.Validate("authority")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge_base_url")

	cfg.Authority.KnowledgeBaseURL = "https://kb.example"
	cfg.Authority.ReputationURL = "https://rep.example"
	cfg.Authority.CoOccurrenceURL = "https://co.example"
	assert.NoError(t, cfg.Validate("authority"))
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Engine.Workers = 0
	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.workers must be between")

	cfg.Engine.Workers = 4
	cfg.Scorer.ComplianceTarget = 1.5
	err = cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compliance_target")

	cfg.Scorer.ComplianceTarget = 0.85
	cfg.Corpus.SimilarityThreshold = 0
	err = cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
