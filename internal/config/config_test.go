package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/config"
)

func TestLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := config.Load("", "/proj")
	require.NoError(t, err)

	assert.Equal(t, "/proj", cfg.ProjectDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5000, cfg.GateTimeoutMS)
	assert.Equal(t, 300, cfg.WatchDebounceMS)
	assert.Empty(t, cfg.ElmBinary)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "elm-pair.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
socket_dir: /tmp/elm-pair-sockets
elm_binary: /usr/local/bin/elm
log_level: debug
include:
  - "src/**"
exclude:
  - "tests/**"
`), 0o644))

	cfg, err := config.Load(yamlPath, dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/elm-pair-sockets", cfg.SocketDir)
	assert.Equal(t, "/usr/local/bin/elm", cfg.ElmBinary)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"src/**"}, cfg.Include)
	assert.Equal(t, []string{"tests/**"}, cfg.Exclude)
}

func TestLoadEnvironmentOverridesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "elm-pair.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("log_level: debug\n"), 0o644))

	t.Setenv("ELM_PAIR_LOG_LEVEL", "error")

	cfg, err := config.Load(yamlPath, dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadReturnsErrorOnMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "elm-pair.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("not: valid: yaml: at: all:\n"), 0o644))

	_, err := config.Load(yamlPath, dir)
	assert.Error(t, err)
}

func TestLoadLoadsDotEnvFromProjectDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ELM_PAIR_LOG_LEVEL=warn\n"), 0o644))
	// godotenv.Load sets process environment directly rather than through
	// testing.T, so it must be unwound manually to avoid leaking into
	// later tests in this package.
	t.Cleanup(func() { os.Unsetenv("ELM_PAIR_LOG_LEVEL") })

	cfg, err := config.Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestGateTimeoutMSConvertsToDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ELM_PAIR_GATE_TIMEOUT_MS", "1500")

	cfg, err := config.Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.GateTimeoutMS)
	assert.Equal(t, int64(1500), cfg.GateTimeout.Milliseconds())
}

func TestSlogLevelParsesRecognizedLevelsAndDefaultsToInfo(t *testing.T) {
	c := &config.Config{LogLevel: "debug"}
	assert.Equal(t, "DEBUG", c.SlogLevel().String())

	c.LogLevel = "warn"
	assert.Equal(t, "WARN", c.SlogLevel().String())

	c.LogLevel = "nonsense"
	assert.Equal(t, "INFO", c.SlogLevel().String())
}
