package gemini

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"github.com/petal-labs/imggen/core"
	"github.com/petal-labs/imggen/providers/internal/normalize"
)

// statusResourceExhausted is the API status string for quota errors.
const statusResourceExhausted = "RESOURCE_EXHAUSTED"

// normalizeError maps an SDK error onto a ProviderError.
func normalizeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return normalize.NetworkError(core.ProviderGoogle, err)
	}

	var sentinel error
	status := apiErr.Code
	if status == http.StatusTooManyRequests || apiErr.Status == statusResourceExhausted {
		sentinel = core.ErrRateLimited
		if status == 0 {
			status = http.StatusTooManyRequests
		}
	}
	return normalize.ProviderError(core.ProviderGoogle, status, "", apiErr.Status, apiErr.Message, sentinel)
}

// asAPIError extracts a genai.APIError, which the SDK may return by value
// or by pointer.
func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}
