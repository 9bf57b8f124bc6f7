// Package config handles CLI configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	DefaultModel    string                    `yaml:"default_model,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	// APIKey is a plain-text key. Keys saved by "imggen setup" go to the
	// encrypted keystore instead.
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// APIKeyEnvVars lists the environment variables checked for each
// provider's API key, in lookup order.
var APIKeyEnvVars = map[string][]string{
	"openai": {"OPENAI_API_KEY"},
	"google": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.imggen/config.yaml
// - Windows: %USERPROFILE%\.imggen\config.yaml
func DefaultConfigPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		// Fallback to current directory
		return "config.yaml"
	}

	return filepath.Join(homeDir, ".imggen", "config.yaml")
}

// LoadConfig loads configuration from the specified path.
// If the file doesn't exist, returns an empty config without error.
// Returns an error only if the file exists but cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path, creating the parent directory. The file
// is readable by the owner only since it may hold API keys.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o600)
}

// GetProvider returns the provider config for the given ID.
// Returns nil if the provider is not configured.
func (c *Config) GetProvider(id string) *ProviderConfig {
	if c == nil || c.Providers == nil {
		return nil
	}
	if pc, ok := c.Providers[id]; ok {
		return &pc
	}
	return nil
}

// EnvAPIKey returns the first non-empty API key environment variable for
// a provider, using getenv for lookups.
func EnvAPIKey(provider string, getenv func(string) string) string {
	for _, name := range APIKeyEnvVars[provider] {
		if v := getenv(name); v != "" {
			return v
		}
	}
	return ""
}
