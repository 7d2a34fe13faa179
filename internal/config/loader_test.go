package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAppliesBuiltinDefaultsWithNoLayers(t *testing.T) {
	dir := t.TempDir()
	tc, err := Load(
		WithSystemPath(filepath.Join(dir, "missing-system.yaml")),
		WithUserPath(filepath.Join(dir, "missing-user.yaml")),
		WithProjectPath(filepath.Join(dir, "missing-project.yaml")),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tc.Config.MaxAttempts != 3 || tc.Config.AutoDevLabel != "auto-dev" {
		t.Fatalf("expected built-in defaults, got %+v", tc.Config)
	}
	if tc.SourceOf("max_attempts") != SourceDefault {
		t.Fatalf("expected max_attempts source default, got %s", tc.SourceOf("max_attempts"))
	}
}

func TestLoadProjectLayerOverridesSystemLayer(t *testing.T) {
	dir := t.TempDir()
	systemPath := filepath.Join(dir, "system.yaml")
	projectPath := filepath.Join(dir, "project.yaml")
	writeYAML(t, systemPath, "max_attempts: 5\nstore_dsn: sqlite://system.db\n")
	writeYAML(t, projectPath, "max_attempts: 7\n")

	tc, err := Load(
		WithSystemPath(systemPath),
		WithUserPath(filepath.Join(dir, "missing-user.yaml")),
		WithProjectPath(projectPath),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tc.Config.MaxAttempts != 7 {
		t.Fatalf("expected project layer to win, got %d", tc.Config.MaxAttempts)
	}
	if tc.SourceOf("max_attempts") != SourceProject {
		t.Fatalf("expected max_attempts source project, got %s", tc.SourceOf("max_attempts"))
	}
	if tc.Config.StoreDSN != "sqlite://system.db" {
		t.Fatalf("expected store_dsn from system layer, got %s", tc.Config.StoreDSN)
	}
	if tc.SourceOf("store_dsn") != SourceSystem {
		t.Fatalf("expected store_dsn source system, got %s", tc.SourceOf("store_dsn"))
	}
}

func TestLoadEnvOverridesFileLayers(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.yaml")
	writeYAML(t, projectPath, "max_attempts: 7\n")

	t.Setenv("ORCTASK_MAX_ATTEMPTS", "9")

	tc, err := Load(
		WithSystemPath(filepath.Join(dir, "missing-system.yaml")),
		WithUserPath(filepath.Join(dir, "missing-user.yaml")),
		WithProjectPath(projectPath),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tc.Config.MaxAttempts != 9 {
		t.Fatalf("expected env override to win, got %d", tc.Config.MaxAttempts)
	}
	if tc.SourceOf("max_attempts") != SourceEnv {
		t.Fatalf("expected max_attempts source env, got %s", tc.SourceOf("max_attempts"))
	}
}

func TestLoadRejectsMalformedProjectFile(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.yaml")
	writeYAML(t, projectPath, "max_attempts: [this is not an int\n")

	_, err := Load(
		WithSystemPath(filepath.Join(dir, "missing-system.yaml")),
		WithUserPath(filepath.Join(dir, "missing-user.yaml")),
		WithProjectPath(projectPath),
	)
	if err == nil {
		t.Fatal("expected error for malformed project config file")
	}
}
