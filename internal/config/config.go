// Package config loads the smx pipeline configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked for in the working directory when no config
// path is given.
const DefaultFileName = "smx.yml"

// Config is the pipeline configuration, read from YAML and overridable
// via SMX_* environment variables and command-line flags.
type Config struct {
	Vocabulary string `yaml:"vocabulary"`
	LocationDB string `yaml:"location_db"`
	CorpusDir  string `yaml:"corpus_dir"`
	WorkDir    string `yaml:"work_dir"`

	Workers          int     `yaml:"workers"`
	ContextRadius    int     `yaml:"context_radius"`
	ShardMaxRecords  int     `yaml:"shard_max_records"`
	FailureTolerance float64 `yaml:"failure_tolerance"`
	// ReadRateMB throttles each worker's corpus reads, in MB/s.
	// Zero disables throttling.
	ReadRateMB int `yaml:"read_rate_mb"`

	Exports ExportConfig `yaml:"exports"`
}

// ExportConfig selects the flat exports produced after aggregation.
type ExportConfig struct {
	CombinedCSV bool `yaml:"combined_csv"`
	PerTermCSV  bool `yaml:"per_term_csv"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		WorkDir:          "results",
		Workers:          8,
		ContextRadius:    100,
		ShardMaxRecords:  50000,
		FailureTolerance: 0.05,
		Exports:          ExportConfig{CombinedCSV: true},
	}
}

// Load reads a config file and applies env overrides and defaults. A
// missing file at the default path is not an error; a missing file at an
// explicitly requested path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg.applyEnv()
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv lets environment variables (usually from a .env file) override
// the path settings.
func (c *Config) applyEnv() {
	if v := os.Getenv("SMX_VOCABULARY"); v != "" {
		c.Vocabulary = v
	}
	if v := os.Getenv("SMX_LOCATION_DB"); v != "" {
		c.LocationDB = v
	}
	if v := os.Getenv("SMX_CORPUS_DIR"); v != "" {
		c.CorpusDir = v
	}
	if v := os.Getenv("SMX_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
}

// Validate checks the settings that every phase depends on.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ContextRadius <= 0 {
		return fmt.Errorf("context_radius must be positive, got %d", c.ContextRadius)
	}
	if c.FailureTolerance < 0 || c.FailureTolerance > 1 {
		return fmt.Errorf("failure_tolerance must be in [0, 1], got %g", c.FailureTolerance)
	}
	if c.ReadRateMB < 0 {
		return fmt.Errorf("read_rate_mb must not be negative, got %d", c.ReadRateMB)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir must be set")
	}
	return nil
}

// ValidateInputs checks that the planner's input paths exist. Kept apart
// from Validate because aggregate-only invocations don't need them.
func (c *Config) ValidateInputs() error {
	if c.Vocabulary == "" {
		return fmt.Errorf("vocabulary path must be set")
	}
	if _, err := os.Stat(c.Vocabulary); err != nil {
		return fmt.Errorf("vocabulary not found: %s", c.Vocabulary)
	}
	if c.LocationDB == "" {
		return fmt.Errorf("location_db path must be set")
	}
	if _, err := os.Stat(c.LocationDB); err != nil {
		return fmt.Errorf("location index not found: %s", c.LocationDB)
	}
	if c.CorpusDir == "" {
		return fmt.Errorf("corpus_dir must be set")
	}
	info, err := os.Stat(c.CorpusDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("corpus directory not found: %s", c.CorpusDir)
	}
	return nil
}

// PlanDir returns the plan directory inside the work directory.
func (c *Config) PlanDir() string { return filepath.Join(c.WorkDir, "plan") }

// ShardDir returns the shard directory inside the work directory.
func (c *Config) ShardDir() string { return filepath.Join(c.WorkDir, "shards") }

// DatasetPath returns the merged dataset path.
func (c *Config) DatasetPath() string { return filepath.Join(c.WorkDir, "mentions.parquet") }

// ExpandTilde expands a leading ~/ to the user's home directory.
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
