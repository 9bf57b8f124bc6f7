package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/petal-labs/imggen/core"
)

// API key environment variables, in lookup order.
const (
	APIKeyEnvVar       = "GEMINI_API_KEY"
	GoogleAPIKeyEnvVar = "GOOGLE_API_KEY"
)

// ErrAPIKeyNotFound is returned when neither API key environment variable is set.
var ErrAPIKeyNotFound = errors.New("gemini: GEMINI_API_KEY or GOOGLE_API_KEY environment variable not set")

// ContentGenerator is the part of the genai SDK the adapter calls.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates images with the Gemini API.
// Gemini is safe for concurrent use.
type Gemini struct {
	config    Config
	generator ContentGenerator
}

// NewFromEnv creates an adapter from GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func NewFromEnv(ctx context.Context, opts ...Option) (*Gemini, error) {
	key := os.Getenv(APIKeyEnvVar)
	if key == "" {
		key = os.Getenv(GoogleAPIKeyEnvVar)
	}
	if key == "" {
		return nil, ErrAPIKeyNotFound
	}
	return New(ctx, key, opts...)
}

// New creates an adapter with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	cfg := Config{Logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &Gemini{config: cfg, generator: cfg.generator}
	if g.generator != nil {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Headers: cfg.Headers,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	g.generator = client.Models
	return g, nil
}

// ID returns the provider identifier.
func (p *Gemini) ID() string {
	return core.ProviderGoogle
}

// DefaultModel returns the model used when a request has no override.
func (p *Gemini) DefaultModel() string {
	return DefaultModel
}

// Compile-time check that Gemini implements ImageProvider.
var _ core.ImageProvider = (*Gemini)(nil)

// Compile-time check that the SDK satisfies ContentGenerator.
var _ ContentGenerator = (*genai.Models)(nil)
