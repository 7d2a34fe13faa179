package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

const (
	systemConfigPath  = "/etc/orc-task/config.yaml"
	userConfigDir     = ".orc-task"
	projectConfigPath = ".orc-task/config.yaml"
	envPrefix         = "ORCTASK"
)

// options configures Load. Tests override the file-layer paths; production
// callers use the zero value.
type options struct {
	systemPath  string
	userPath    string
	projectPath string
}

// Option configures Load.
type Option func(*options)

// WithSystemPath overrides the system configuration file path.
func WithSystemPath(p string) Option { return func(o *options) { o.systemPath = p } }

// WithUserPath overrides the user configuration file path.
func WithUserPath(p string) Option { return func(o *options) { o.userPath = p } }

// WithProjectPath overrides the project configuration file path.
func WithProjectPath(p string) Option { return func(o *options) { o.projectPath = p } }

// Load resolves configuration in layered order — built-in defaults, system
// file, user file, project file, environment variables — exactly as the
// reference config loader layers its sources, tracking each field's
// provenance (§6). Missing optional files are skipped, not errors; a
// malformed project file is fatal.
func Load(opts ...Option) (*TrackedConfig, error) {
	o := options{
		systemPath:  systemConfigPath,
		projectPath: projectConfigPath,
	}
	if home, err := os.UserHomeDir(); err == nil {
		o.userPath = filepath.Join(home, userConfigDir, "config.yaml")
	}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, defaults())

	tc := &TrackedConfig{sources: make(map[string]Source, len(Keys))}
	for _, k := range Keys {
		tc.sources[k] = SourceDefault
	}

	layers := []struct {
		path   string
		source Source
	}{
		{o.systemPath, SourceSystem},
		{o.userPath, SourceUser},
		{o.projectPath, SourceProject},
	}
	for _, layer := range layers {
		if layer.path == "" {
			continue
		}
		if err := mergeLayer(v, tc, layer.path, layer.source); err != nil {
			return nil, err
		}
	}

	applyEnv(v, tc)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	tc.Config = cfg
	return tc, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store_dsn", d.StoreDSN)
	v.SetDefault("allowed_repos", d.AllowedRepos)
	v.SetDefault("allowed_paths", d.AllowedPaths)
	v.SetDefault("blocked_paths", d.BlockedPaths)
	v.SetDefault("auto_dev_label", d.AutoDevLabel)
	v.SetDefault("batch_label", d.BatchLabel)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("max_diff_lines", d.MaxDiffLines)
	v.SetDefault("max_parallel", d.MaxParallel)
	v.SetDefault("batch_timeout_minutes", d.BatchTimeoutMinutes)
	v.SetDefault("min_batch_size", d.MinBatchSize)
	v.SetDefault("max_batch_size", d.MaxBatchSize)
	v.SetDefault("comment_on_failure", d.CommentOnFailure)
	v.SetDefault("model_config_ttl_seconds", d.ModelConfigTTLSeconds)
}

// mergeLayer merges a config file's contents into v if it exists, then
// records which of Keys actually changed as belonging to source. A file
// that exists but fails to parse is a fatal error; one that simply doesn't
// exist is silently skipped (§6's "optional" system/user/project layers).
func mergeLayer(v *viper.Viper, tc *TrackedConfig, path string, source Source) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	before := snapshot(v)
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	after := snapshot(v)
	for _, k := range Keys {
		if !reflect.DeepEqual(before[k], after[k]) {
			tc.sources[k] = source
		}
	}
	return nil
}

func snapshot(v *viper.Viper) map[string]any {
	m := make(map[string]any, len(Keys))
	for _, k := range Keys {
		m[k] = v.Get(k)
	}
	return m
}

// applyEnv enables ORCTASK_-prefixed environment variable overrides and
// records which keys an environment variable actually set. Every key in
// Keys, list-valued ones (allowed_repos, allowed_paths, blocked_paths)
// included, is overridable this way and tracked as SourceEnv when set.
func applyEnv(v *viper.Viper, tc *TrackedConfig) {
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	for _, k := range Keys {
		envKey := envPrefix + "_" + strings.ToUpper(replacer.Replace(k))
		if _, ok := os.LookupEnv(envKey); ok {
			tc.sources[k] = SourceEnv
		}
	}
}
