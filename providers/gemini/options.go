package gemini

import (
	"net/http"

	"go.uber.org/zap"
)

// Config holds configuration for the Gemini image adapter.
type Config struct {
	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL string

	// HTTPClient is the HTTP client handed to the SDK.
	HTTPClient *http.Client

	// Headers contains optional extra headers to include in requests.
	Headers http.Header

	// BatchPricing prices token usage at the batch API rate. It is a
	// library-only setting: adapters built through the provider registry
	// always use standard pricing.
	BatchPricing bool

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger

	// generator replaces the SDK client; set by tests.
	generator ContentGenerator
}

// Option configures the Gemini adapter.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithHeader adds an extra header to include in requests.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Set(key, value)
	}
}

// WithBatchPricing prices usage at the batch API rate.
func WithBatchPricing(enabled bool) Option {
	return func(c *Config) {
		c.BatchPricing = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithContentGenerator replaces the SDK client used for requests.
func WithContentGenerator(g ContentGenerator) Option {
	return func(c *Config) {
		c.generator = g
	}
}
