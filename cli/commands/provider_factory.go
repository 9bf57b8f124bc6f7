package commands

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/petal-labs/imggen/cli/config"
	"github.com/petal-labs/imggen/cli/keystore"
	"github.com/petal-labs/imggen/providers"
)

// ErrAPIKeyNotFound is returned when no API key is configured for a provider.
var ErrAPIKeyNotFound = errors.New("API key not found")

// newRegistry builds the provider registry, falling back to the
// configured default provider for unrecognised model names.
func (a *App) newRegistry() *providers.Registry {
	var defaultProvider string
	if a.cfg != nil {
		defaultProvider = a.cfg.DefaultProvider
	}
	if a.registrations != nil {
		return providers.NewRegistryFrom(a.registrations, defaultProvider, a.providerConfig)
	}
	return providers.NewRegistry(defaultProvider, a.providerConfig)
}

// providerConfig resolves a provider's settings. The API key comes from
// the environment, then the keystore, then the config file.
func (a *App) providerConfig(provider string) (providers.Config, error) {
	pc := a.cfg.GetProvider(provider)

	key := config.EnvAPIKey(provider, a.getenv)
	if key == "" {
		key = a.storedKey(provider)
	}
	if key == "" && pc != nil {
		key = pc.APIKey
	}
	if key == "" {
		return providers.Config{}, missingKeyError(provider)
	}

	cfg := providers.Config{APIKey: key, Logger: a.logger}
	if pc != nil {
		cfg.BaseURL = pc.BaseURL
	}
	return cfg, nil
}

// storedKey returns the keystore entry for provider, or "" when there is
// none. An unreadable keystore is logged and treated as empty.
func (a *App) storedKey(provider string) string {
	ks, err := a.openKeystore()
	if err != nil {
		a.logger.Warn("failed to open keystore", zap.Error(err))
		return ""
	}
	key, err := ks.Get(provider)
	if err != nil {
		var notFound *keystore.ErrKeyNotFound
		if !errors.As(err, &notFound) {
			a.logger.Warn("failed to read keystore", zap.String("provider", provider), zap.Error(err))
		}
		return ""
	}
	return key
}

func missingKeyError(provider string) error {
	hint := "run 'imggen setup'"
	if vars := config.APIKeyEnvVars[provider]; len(vars) > 0 {
		hint = "set " + strings.Join(vars, " or ") + " or " + hint
	}
	return fmt.Errorf("%w for %s: %s", ErrAPIKeyNotFound, provider, hint)
}
