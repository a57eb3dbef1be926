package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "truthengine", cfg.Name)
	assert.Equal(t, 2, cfg.Verdict.Tier2MinAgreement)
	assert.Equal(t, 3, cfg.Verdict.Tier3MinPatterns)
	assert.Equal(t, 0.5, cfg.Extraction.MinConfidence)
	assert.Equal(t, 45*time.Second, cfg.GlobalTimeout())
	assert.Equal(t, 2*time.Minute, cfg.SessionMaxLifetime())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine.GlobalTimeout, cfg.Engine.GlobalTimeout)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
engine:
  global_timeout: 10s
  fallback_confidence_floor: 0.4
verdict:
  tier3_min_patterns: 4
logging:
  debug_mode: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.GlobalTimeout())
	assert.Equal(t, 0.4, cfg.Engine.FallbackConfidenceFloor)
	assert.Equal(t, 4, cfg.Verdict.Tier3MinPatterns)
	assert.True(t, cfg.Logging.DebugMode)

	// Unset fields keep their defaults.
	assert.Equal(t, 2, cfg.Verdict.Tier2MinAgreement)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Engine.GlobalTimeout = "99s"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99*time.Second, loaded.GlobalTimeout())
}

func TestParseDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.GlobalTimeout = "garbage"
	assert.Equal(t, 45*time.Second, cfg.GlobalTimeout())

	cfg.Session.MaxLifetime = "-5s"
	assert.Equal(t, 2*time.Minute, cfg.SessionMaxLifetime())
}
