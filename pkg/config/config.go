// Package config loads server configuration from environment variables
// and the survey YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ukhalilov/ai-survey-app/pkg/manifest"
)

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	AdminToken     string
	AdminTokenHash string // bcrypt hash, takes precedence over AdminToken
	SessionSecret  string
	ConfigPath     string

	Survey SurveyFile

	// StorageRoot is the resolved responses directory: the configured
	// root, or the fallback when the root cannot be created.
	StorageRoot string
}

// SurveyFile is the on-disk survey configuration (config.yaml).
type SurveyFile struct {
	Providers   map[string]string `yaml:"providers"`
	SeedLabels  []int             `yaml:"seed_labels"`
	ModuleItems map[string]int    `yaml:"module_items"`
	Filter      FilterConfig      `yaml:"filter"`
	Storage     StorageConfig     `yaml:"storage"`
	UI          UIConfig          `yaml:"ui"`
}

// UIConfig tunes the rater-facing pages.
type UIConfig struct {
	// StrictRankLock greys out rank pills already taken by another
	// image instead of letting a click steal the rank.
	StrictRankLock bool `yaml:"strict_rank_lock"`
}

// FilterConfig controls which manifest rows enter the task pools.
type FilterConfig struct {
	StatusOKOnly    bool `yaml:"status_ok_only"`
	Require1KSquare bool `yaml:"require_1k_square"`
}

// StorageConfig names the responses directory and its fallback.
type StorageConfig struct {
	Root         string `yaml:"root"`
	FallbackRoot string `yaml:"fallback_root"`
}

const defaultSurveyYAML = `# Auto-created if missing; edit paths if yours differ
providers:
  chatgpt: "/data/research/chatgpt"
  google: "/data/research/google"
  stability: "/data/research/stability"
  bfl: "/data/research/flux"

seed_labels: [11, 23, 37, 53, 71]

module_items:
  A: 24
  B: 12
  C: 12

filter:
  status_ok_only: true
  # require_1k_square: true

storage:
  root: "/data/research/survey_results"
  fallback_root: "/tmp/survey_results"
`

// Load reads environment variables, then the survey YAML file (writing
// the default file first if it does not exist), and resolves the
// storage root with its fallback.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           envOr("PORT", "8080"),
		LogLevel:       envOr("LOG_LEVEL", "INFO"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		ConfigPath:     envOr("SURVEY_CONFIG", "config.yaml"),
	}

	survey, err := loadSurveyFile(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Survey = *survey

	root := envOr("SURVEY_STORAGE", cfg.Survey.Storage.Root)
	fallback := envOr("SURVEY_STORAGE_FALLBACK", cfg.Survey.Storage.FallbackRoot)
	resolved, err := resolveStorageRoot(root, fallback)
	if err != nil {
		return nil, err
	}
	cfg.StorageRoot = resolved

	for _, sub := range []string{"db", "exports"} {
		if err := os.MkdirAll(filepath.Join(resolved, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create storage subdir %s: %w", sub, err)
		}
	}
	return cfg, nil
}

// DBPath returns the SQLite database file under the storage root.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageRoot, "db", "survey.sqlite")
}

// ExportDir returns the CSV export directory under the storage root.
func (c *Config) ExportDir() string {
	return filepath.Join(c.StorageRoot, "exports")
}

// Filter converts the YAML filter section for the manifest reader.
func (c *Config) Filter() manifest.Filter {
	return manifest.Filter{
		StatusOKOnly:    c.Survey.Filter.StatusOKOnly,
		Require1KSquare: c.Survey.Filter.Require1KSquare,
	}
}

// ModuleTarget returns the configured item count for a module.
func (c *Config) ModuleTarget(module string) int {
	if n, ok := c.Survey.ModuleItems[module]; ok {
		return n
	}
	return 0
}

func loadSurveyFile(path string) (*SurveyFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultSurveyYAML), 0o644); err != nil {
			return nil, fmt.Errorf("write default config %s: %w", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	survey := &SurveyFile{
		Filter: FilterConfig{StatusOKOnly: true},
	}
	if err := yaml.Unmarshal(data, survey); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if len(survey.SeedLabels) == 0 {
		survey.SeedLabels = []int{11, 23, 37, 53, 71}
	}
	if len(survey.ModuleItems) == 0 {
		survey.ModuleItems = map[string]int{"A": 24, "B": 12, "C": 12}
	}
	return survey, nil
}

// resolveStorageRoot creates the configured root, falling back to the
// secondary root when the primary is not writable (e.g. the research
// drive is not mounted on this machine).
func resolveStorageRoot(root, fallback string) (string, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err == nil {
			return root, nil
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("storage root %q unavailable and no fallback configured", root)
	}
	if err := os.MkdirAll(fallback, 0o755); err != nil {
		return "", fmt.Errorf("create fallback storage root %s: %w", fallback, err)
	}
	return fallback, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
