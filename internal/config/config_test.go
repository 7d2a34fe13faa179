package config

import "testing"

func TestValidateRequiresStoreDSN(t *testing.T) {
	c := defaults()
	c.AllowedRepos = []string{"acme/widgets"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing store_dsn")
	}
	c.StoreDSN = "sqlite://orc.db"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresAllowedRepos(t *testing.T) {
	c := defaults()
	c.StoreDSN = "sqlite://orc.db"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty allowed_repos")
	}
}

func TestValidateRejectsMaxBatchSizeBelowMin(t *testing.T) {
	c := defaults()
	c.StoreDSN = "sqlite://orc.db"
	c.AllowedRepos = []string{"acme/widgets"}
	c.MinBatchSize = 5
	c.MaxBatchSize = 3
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for max_batch_size < min_batch_size")
	}
}

func TestTrackedConfigSourceOfDefaultsToDefault(t *testing.T) {
	tc := &TrackedConfig{}
	if tc.SourceOf("max_attempts") != SourceDefault {
		t.Fatalf("expected SourceDefault for untracked key")
	}
}
