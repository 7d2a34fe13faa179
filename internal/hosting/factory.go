package hosting

import (
	"fmt"
	"strings"
)

// Config holds hosting provider configuration.
type Config struct {
	// Provider type: "github", "gitlab", or "auto" (default).
	// When "auto", the provider is detected from BaseURL's host, falling
	// back to GitHub when BaseURL is also empty.
	Provider string `yaml:"provider" json:"provider"`

	// BaseURL for self-hosted instances (e.g., "https://gitlab.company.com").
	// Leave empty for github.com / gitlab.com.
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`

	// TokenEnvVar overrides the default token environment variable name.
	// Default: GITHUB_TOKEN for GitHub, GITLAB_TOKEN for GitLab.
	TokenEnvVar string `yaml:"token_env_var" json:"token_env_var,omitempty"`
}

// NewProviderFunc is a constructor function for creating a hosting provider
// for a given "owner/repo" (or "group/subgroup/repo") identifier. This is
// used by the factory to avoid import cycles — the actual GitHub/GitLab
// constructors are registered at init time by the provider packages.
type NewProviderFunc func(repo string, cfg Config) (Provider, error)

// Provider constructors registered by provider packages.
var providerConstructors = map[ProviderType]NewProviderFunc{}

// RegisterProvider registers a provider constructor.
// Called from init() in provider packages (github/, gitlab/).
func RegisterProvider(providerType ProviderType, constructor NewProviderFunc) {
	providerConstructors[providerType] = constructor
}

// NewProvider creates a hosting provider for repo, an "owner/repo" string
// as carried on every Task. There is no local checkout to inspect here —
// every task this orchestrator drives names its repo directly — so
// provider selection comes from cfg, not from a git remote.
func NewProvider(repo string, cfg Config) (Provider, error) {
	providerType, err := resolveProviderType(cfg)
	if err != nil {
		return nil, err
	}

	constructor, ok := providerConstructors[providerType]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (registered: %v)", providerType, registeredProviders())
	}

	return constructor(repo, cfg)
}

// resolveProviderType determines which provider to use from cfg alone.
func resolveProviderType(cfg Config) (ProviderType, error) {
	if cfg.Provider != "" && cfg.Provider != "auto" {
		pt := ProviderType(cfg.Provider)
		if pt != ProviderGitHub && pt != ProviderGitLab {
			return "", fmt.Errorf("unknown provider %q (supported: github, gitlab)", cfg.Provider)
		}
		return pt, nil
	}

	// "auto": a self-hosted BaseURL's host tells us which provider it is.
	// With no BaseURL there's nothing hosted to inspect, so default to
	// GitHub — the common case for this config's typical deployment.
	if cfg.BaseURL == "" {
		return ProviderGitHub, nil
	}
	detected := DetectProvider(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if detected == ProviderUnknown {
		return "", fmt.Errorf("cannot detect hosting provider from base_url %q (set provider explicitly in config)", cfg.BaseURL)
	}
	return detected, nil
}

func registeredProviders() []ProviderType {
	var providers []ProviderType
	for pt := range providerConstructors {
		providers = append(providers, pt)
	}
	return providers
}
