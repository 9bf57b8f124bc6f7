package core

import "context"

// ImageProvider generates a single image per call and stores it on disk.
type ImageProvider interface {
	// ID returns the provider identifier (e.g., "openai", "google").
	ID() string

	// DefaultModel returns the model used when a request carries no override.
	DefaultModel() string

	// GenerateImage generates one image and writes it to
	// req.OutputDir/req.Filename. On failure nothing is written.
	GenerateImage(ctx context.Context, req *GenerationRequest) (*GeneratedImage, error)
}

// Provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)
