// Package providers resolves provider and model names to image adapters.
//
// Each adapter lives in its own subpackage (providers/openai,
// providers/gemini) and registers itself from an init function:
//
//	func init() {
//	    providers.Register(providers.Registration{
//	        Name:     "openai",
//	        Models:   []string{"gpt-image-1.5"},
//	        Prefixes: []string{"gpt-", "dall-e", "chatgpt-image"},
//	        Factory:  newFromConfig,
//	    })
//	}
//
// A Registry snapshots the registrations and builds adapters on demand,
// pulling credentials from a ConfigLookup supplied by the caller.
//
// # Concurrency
//
// Adapters are shared by every slot of a batch and must be safe for
// concurrent GenerateImage calls.
package providers

import (
	"go.uber.org/zap"

	"github.com/petal-labs/imggen/core"
)

// ImageProvider re-exports core.ImageProvider so adapters and callers can
// import just this package.
type ImageProvider = core.ImageProvider

// Config carries the settings an adapter is built from.
type Config struct {
	APIKey  string
	BaseURL string
	Logger  *zap.Logger
}

// Factory builds an adapter from cfg.
type Factory func(cfg Config) (core.ImageProvider, error)

// ConfigLookup returns the settings for a provider. It fails when a
// required credential is missing.
type ConfigLookup func(provider string) (Config, error)
