package config

import (
	"github.com/bmatcuk/doublestar/v4"
)

// PathPolicy enforces the allowed/blocked path globs a task's Plan stage
// targets must satisfy (§6). It implements taskdriver.PathValidator without
// importing taskdriver, the way the other driver seams (TestRunner,
// PRCreator) are satisfied structurally.
type PathPolicy struct {
	allowed []string
	blocked []string
}

// NewPathPolicy builds a PathPolicy from the resolved configuration's
// allowed/blocked glob lists. An empty allowed list means every path is
// permitted unless it matches a blocked glob.
func NewPathPolicy(cfg Config) *PathPolicy {
	return &PathPolicy{allowed: cfg.AllowedPaths, blocked: cfg.BlockedPaths}
}

// Validate returns the first target path that violates the policy — either
// matching a blocked glob, or (when an allow-list is configured) matching
// none of the allowed globs — or "" if every target file passes.
func (p *PathPolicy) Validate(targetFiles []string) string {
	for _, f := range targetFiles {
		if matchesAny(p.blocked, f) {
			return f
		}
		if len(p.allowed) > 0 && !matchesAny(p.allowed, f) {
			return f
		}
	}
	return ""
}

func matchesAny(globs []string, path string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}
