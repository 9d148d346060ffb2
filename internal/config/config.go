package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	File        string        `yaml:"file"`
	Section     string        `yaml:"section"`
	Key         string        `yaml:"key"`
	JournalPath string        `yaml:"journal_path"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
	Output      string        `yaml:"output"`

	// Sources records where each field's value came from, keyed by yaml name.
	Sources map[string]string `yaml:"-"`
}

const (
	SourceDefault = "default"
	SourceYAML    = "config file"
)

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/sectmerge/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Section:     "build",
		Key:         "rustc-wrapper",
		LogLevel:    "info",
		LogFormat:   "console",
		LockTimeout: 5 * time.Second,
		Output:      "table",
		Sources:     map[string]string{},
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional, so a missing file is not an error
	if path, err := YAMLPath(); err == nil {
		if err := loadYAMLConfig(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	// Override with environment variables
	if file := getEnvOrFile("SECTMERGE_FILE", "SECTMERGE_FILE_FILE"); file != "" {
		cfg.set("file", &cfg.File, file, "SECTMERGE_FILE")
	}
	overrides := []struct {
		name   string
		field  *string
		envVar string
	}{
		{"section", &cfg.Section, "SECTMERGE_SECTION"},
		{"key", &cfg.Key, "SECTMERGE_KEY"},
		{"journal_path", &cfg.JournalPath, "SECTMERGE_JOURNAL"},
		{"log_level", &cfg.LogLevel, "SECTMERGE_LOG_LEVEL"},
		{"log_format", &cfg.LogFormat, "SECTMERGE_LOG_FORMAT"},
		{"output", &cfg.Output, "SECTMERGE_OUTPUT"},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.envVar); v != "" {
			cfg.set(o.name, o.field, v, o.envVar)
		}
	}
	if v := os.Getenv("SECTMERGE_LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SECTMERGE_LOCK_TIMEOUT %q: %w", v, err)
		}
		cfg.LockTimeout = d
		cfg.Sources["lock_timeout"] = "environment variable SECTMERGE_LOCK_TIMEOUT"
	}

	// Set defaults if not configured
	if cfg.File == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.File = filepath.Join(cargoHome(homeDir), "config.toml")
	}

	if cfg.JournalPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.JournalPath = filepath.Join(homeDir, ".local", "share", "sectmerge", "journal.db")
	}

	cfg.File = expandHome(cfg.File)
	cfg.JournalPath = expandHome(cfg.JournalPath)

	return cfg, nil
}

// Source returns where the named field's value came from.
func (c *Config) Source(name string) string {
	if src, ok := c.Sources[name]; ok {
		return src
	}
	return SourceDefault
}

// SetFlag records a command-line override.
func (c *Config) SetFlag(name string, field *string, value, flag string) {
	c.set(name, field, value, "command-line flag --"+flag)
}

func (c *Config) set(name string, field *string, value, source string) {
	*field = strings.TrimSpace(value)
	if c.Sources == nil {
		c.Sources = map[string]string{}
	}
	c.Sources[name] = source
}

// YAMLPath returns ~/.config/sectmerge/config.yaml
func YAMLPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "sectmerge", "config.yaml"), nil
}

// loadYAMLConfig loads configuration from the YAML file at path
func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	for name := range raw {
		cfg.Sources[name] = SourceYAML
	}
	return nil
}

// cargoHome honors $CARGO_HOME the way cargo itself does.
func cargoHome(homeDir string) string {
	if dir := os.Getenv("CARGO_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir, ".cargo")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
