// Package config resolves elm-pair's daemon configuration, layering
// defaults, an optional YAML file, a .env file, and environment variables
// in that precedence order (lowest to highest); cmd/elm-pair layers CLI
// flags on top of the result, the highest precedence of all. Grounded on
// termfx-morfx/internal/config/config.go's LoadConfig: an env-var-driven
// struct with defaulting and best-effort strconv parsing.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every daemon setting cmd/elm-pair needs, gathered from a
// YAML file, a .env file, and the environment before flags are applied.
type Config struct {
	ProjectDir string `yaml:"project_dir"`
	SocketDir  string `yaml:"socket_dir"`
	ElmBinary  string `yaml:"elm_binary"`

	DBPath          string `yaml:"db_path"`
	DBDebug         bool   `yaml:"db_debug"`
	MirrorURL       string `yaml:"mirror_url"`
	MirrorAuthToken string `yaml:"-"` // secrets never come from the YAML file

	LogLevel string `yaml:"log_level"`

	MetricsAddr string `yaml:"metrics_addr"`

	GateTimeout     time.Duration `yaml:"-"`
	GateTimeoutMS   int           `yaml:"gate_timeout_ms"`
	WatchDebounce   time.Duration `yaml:"-"`
	WatchDebounceMS int           `yaml:"watch_debounce_ms"`

	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// defaults mirrors LoadConfig's own defaulting style: construct the
// default struct, then let each layer overwrite fields it has an opinion
// on.
func defaults() *Config {
	return &Config{
		SocketDir:       socketDirDefault(),
		ElmBinary:       "",
		DBPath:          dbPathDefault(),
		LogLevel:        "info",
		MetricsAddr:     "",
		GateTimeoutMS:   5000,
		WatchDebounceMS: 300,
	}
}

func socketDirDefault() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

func dbPathDefault() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ".elm-pair/run.db"
	}
	return fmt.Sprintf("%s/.elm-pair/run.db", cwd)
}

// Load builds a Config by layering, in increasing precedence: built-in
// defaults, a YAML file at yamlPath (if non-empty and it exists), a .env
// file in projectDir (if present, via godotenv, non-fatal if missing),
// then environment variables. It never errors on a missing optional file;
// it only errors on a YAML file that exists but fails to parse.
func Load(yamlPath, projectDir string) (*Config, error) {
	cfg := defaults()
	cfg.ProjectDir = projectDir

	if yamlPath != "" {
		if err := applyYAML(cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	loadDotEnv(projectDir)
	applyEnv(cfg)

	cfg.GateTimeout = time.Duration(cfg.GateTimeoutMS) * time.Millisecond
	cfg.WatchDebounce = time.Duration(cfg.WatchDebounceMS) * time.Millisecond
	return cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// loadDotEnv loads a .env file from projectDir into the process
// environment, the same "best-effort, missing file is fine" semantics
// godotenv.Load already has.
func loadDotEnv(projectDir string) {
	if projectDir == "" {
		return
	}
	_ = godotenv.Load(projectDir + "/.env")
}

// SlogLevel parses LogLevel into a slog.Level, defaulting to Info for an
// unrecognized value.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ELM_PAIR_SOCKET_DIR"); v != "" {
		cfg.SocketDir = v
	}
	if v := os.Getenv("ELM_PAIR_ELM_BINARY"); v != "" {
		cfg.ElmBinary = v
	}
	if v := os.Getenv("ELM_PAIR_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ELM_PAIR_DB_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DBDebug = b
		}
	}
	if v := os.Getenv("ELM_PAIR_MIRROR_URL"); v != "" {
		cfg.MirrorURL = v
	}
	if v := os.Getenv("ELM_PAIR_MIRROR_AUTH_TOKEN"); v != "" {
		cfg.MirrorAuthToken = v
	}
	if v := os.Getenv("ELM_PAIR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ELM_PAIR_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("ELM_PAIR_GATE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GateTimeoutMS = n
		}
	}
	if v := os.Getenv("ELM_PAIR_WATCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WatchDebounceMS = n
		}
	}
}
