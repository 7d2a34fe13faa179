// Package config loads the orchestrator's configuration from layered
// sources — built-in defaults, system file, user file, project file,
// environment variables — tracking which layer set each value, the way
// the reference orchestrator's config loader does (§6, §10).
package config

import "fmt"

// Config holds every configuration input enumerated in §6.
type Config struct {
	// StoreDSN is the Task Store connection string. Its scheme selects
	// the dialect: "sqlite://path/to/file.db" or "postgres://...".
	StoreDSN string `mapstructure:"store_dsn"`

	AllowedRepos []string `mapstructure:"allowed_repos"`
	AllowedPaths []string `mapstructure:"allowed_paths"`
	BlockedPaths []string `mapstructure:"blocked_paths"`

	AutoDevLabel string `mapstructure:"auto_dev_label"`
	BatchLabel   string `mapstructure:"batch_label"`

	MaxAttempts  int `mapstructure:"max_attempts"`
	MaxDiffLines int `mapstructure:"max_diff_lines"`
	MaxParallel  int `mapstructure:"max_parallel"`

	BatchTimeoutMinutes int `mapstructure:"batch_timeout_minutes"`
	MinBatchSize        int `mapstructure:"min_batch_size"`
	MaxBatchSize        int `mapstructure:"max_batch_size"`

	CommentOnFailure      bool `mapstructure:"comment_on_failure"`
	ModelConfigTTLSeconds int  `mapstructure:"model_config_ttl_seconds"`
}

// Source identifies which configuration layer set a value.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceUser    Source = "user"
	SourceProject Source = "project"
	SourceEnv     Source = "env"
)

// Keys lists every mapstructure tag in Config, in declaration order. It
// drives default-setting, per-layer provenance tracking, and env binding.
var Keys = []string{
	"store_dsn",
	"allowed_repos", "allowed_paths", "blocked_paths",
	"auto_dev_label", "batch_label",
	"max_attempts", "max_diff_lines", "max_parallel",
	"batch_timeout_minutes", "min_batch_size", "max_batch_size",
	"comment_on_failure", "model_config_ttl_seconds",
}

// TrackedConfig pairs a resolved Config with the provenance of each field,
// so the effective value's source is introspectable (§6).
type TrackedConfig struct {
	Config  Config
	sources map[string]Source
}

// SourceOf reports which layer set key, or SourceDefault if never tracked.
func (tc *TrackedConfig) SourceOf(key string) Source {
	if tc.sources == nil {
		return SourceDefault
	}
	if s, ok := tc.sources[key]; ok {
		return s
	}
	return SourceDefault
}

// Validate checks the resolved Config for the invariants the orchestrator
// depends on at startup.
func (c *Config) Validate() error {
	if c.StoreDSN == "" {
		return fmt.Errorf("config: store_dsn is required")
	}
	if len(c.AllowedRepos) == 0 {
		return fmt.Errorf("config: allowed_repos must name at least one repo")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("config: max_parallel must be >= 1, got %d", c.MaxParallel)
	}
	if c.MinBatchSize < 2 {
		return fmt.Errorf("config: min_batch_size must be >= 2, got %d", c.MinBatchSize)
	}
	if c.MaxBatchSize < c.MinBatchSize {
		return fmt.Errorf("config: max_batch_size (%d) must be >= min_batch_size (%d)", c.MaxBatchSize, c.MinBatchSize)
	}
	if c.AutoDevLabel == "" || c.BatchLabel == "" {
		return fmt.Errorf("config: auto_dev_label and batch_label must both be set")
	}
	return nil
}

// defaults returns the built-in values for every key in Keys (§6).
func defaults() Config {
	return Config{
		AutoDevLabel:          "auto-dev",
		BatchLabel:            "auto-dev-batch",
		MaxAttempts:           3,
		MaxDiffLines:          400,
		MaxParallel:           3,
		BatchTimeoutMinutes:   30,
		MinBatchSize:          2,
		MaxBatchSize:          10,
		CommentOnFailure:      true,
		ModelConfigTTLSeconds: 60,
	}
}
