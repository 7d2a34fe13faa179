package config

import "testing"

func TestPathPolicyAllowsEverythingWithNoAllowList(t *testing.T) {
	p := NewPathPolicy(Config{})
	if v := p.Validate([]string{"src/main.go", "README.md"}); v != "" {
		t.Fatalf("expected no violation with no allow/block lists, got %q", v)
	}
}

func TestPathPolicyRejectsBlockedPath(t *testing.T) {
	p := NewPathPolicy(Config{BlockedPaths: []string{".github/**"}})
	if v := p.Validate([]string{"src/main.go", ".github/workflows/ci.yaml"}); v != ".github/workflows/ci.yaml" {
		t.Fatalf("expected blocked path flagged, got %q", v)
	}
}

func TestPathPolicyRejectsPathOutsideAllowList(t *testing.T) {
	p := NewPathPolicy(Config{AllowedPaths: []string{"src/**", "docs/**"}})
	if v := p.Validate([]string{"src/main.go", "docs/readme.md"}); v != "" {
		t.Fatalf("expected no violation for allowed paths, got %q", v)
	}
	if v := p.Validate([]string{"src/main.go", "secrets/keys.env"}); v != "secrets/keys.env" {
		t.Fatalf("expected path outside allow list flagged, got %q", v)
	}
}

func TestPathPolicyBlockedTakesPriorityOverAllowed(t *testing.T) {
	p := NewPathPolicy(Config{
		AllowedPaths: []string{"src/**"},
		BlockedPaths: []string{"src/generated/**"},
	})
	if v := p.Validate([]string{"src/generated/bindings.go"}); v != "src/generated/bindings.go" {
		t.Fatalf("expected blocked subpath to win over allow list, got %q", v)
	}
}
