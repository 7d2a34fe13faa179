package hosting

import (
	"testing"
)

func TestResolveProviderType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		wantType ProviderType
		wantErr  bool
	}{
		{
			name:     "explicit github",
			cfg:      Config{Provider: "github"},
			wantType: ProviderGitHub,
		},
		{
			name:     "explicit gitlab",
			cfg:      Config{Provider: "gitlab"},
			wantType: ProviderGitLab,
		},
		{
			name:    "unknown provider returns error",
			cfg:     Config{Provider: "bitbucket"},
			wantErr: true,
		},
		{
			name:    "unknown provider: azure",
			cfg:     Config{Provider: "azure"},
			wantErr: true,
		},
		{
			name:     "auto with no base url defaults to github",
			cfg:      Config{Provider: "auto"},
			wantType: ProviderGitHub,
		},
		{
			name:     "empty provider behaves like auto",
			cfg:      Config{},
			wantType: ProviderGitHub,
		},
		{
			name:     "auto with gitlab base url detects gitlab",
			cfg:      Config{Provider: "auto", BaseURL: "https://gitlab.company.com"},
			wantType: ProviderGitLab,
		},
		{
			name:    "auto with undetectable base url errors",
			cfg:     Config{Provider: "auto", BaseURL: "https://git.internal.example"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveProviderType(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveProviderType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.wantType {
				t.Errorf("resolveProviderType() = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestNewProvider_UnregisteredProvider(t *testing.T) {
	t.Parallel()

	cfg := Config{Provider: "bitbucket"}
	_, err := NewProvider("acme/widgets", cfg)
	if err == nil {
		t.Fatal("NewProvider() with unknown provider should return error")
	}
}

func TestRegisteredProviders(t *testing.T) {
	t.Parallel()

	providers := registeredProviders()
	// registeredProviders returns whatever is currently registered.
	// We can't assert specific providers here since the github/gitlab
	// init() functions may or may not have run depending on imports.
	if providers == nil {
		return
	}
}
