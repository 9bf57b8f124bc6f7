package openai

import (
	"github.com/petal-labs/imggen/core"
	"github.com/petal-labs/imggen/providers/internal/normalize"
)

// normalizeError converts an HTTP error response to a ProviderError with the appropriate sentinel.
func normalizeError(status int, body []byte, requestID string) error {
	return normalize.EnvelopeError(core.ProviderOpenAI, status, body, requestID)
}

// newNetworkError creates a ProviderError for network-related failures.
func newNetworkError(err error) error {
	return normalize.NetworkError(core.ProviderOpenAI, err)
}

// newDecodeError creates a ProviderError for JSON decode failures.
func newDecodeError(err error) error {
	return normalize.DecodeError(core.ProviderOpenAI, err)
}
