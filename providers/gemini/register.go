package gemini

import (
	"context"

	"github.com/petal-labs/imggen/core"
	"github.com/petal-labs/imggen/providers"
)

func init() {
	providers.Register(providers.Registration{
		Name:     core.ProviderGoogle,
		Models:   Models,
		Prefixes: ModelPrefixes,
		Factory:  newFromConfig,
	})
}

func newFromConfig(cfg providers.Config) (core.ImageProvider, error) {
	opts := []Option{WithLogger(cfg.Logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(context.Background(), cfg.APIKey, opts...)
}
