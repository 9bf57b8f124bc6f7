// Package normalize maps provider HTTP failures onto core sentinel errors.
package normalize

import (
	"encoding/json"
	"net/http"

	"github.com/petal-labs/imggen/core"
)

// errorEnvelope matches {"error":{"message":"...","type":"...","code":"..."}}.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// EnvelopeError builds a ProviderError from an OpenAI-style error body.
// Unparseable bodies fall back to the HTTP status text.
func EnvelopeError(provider string, status int, body []byte, requestID string) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	code := ""
	switch c := env.Error.Code.(type) {
	case string:
		code = c
	case float64:
		code = http.StatusText(int(c))
	}
	if code == "" {
		code = env.Error.Type
	}
	return ProviderError(provider, status, requestID, code, env.Error.Message, nil)
}

// NetworkError wraps a transport failure.
func NetworkError(provider string, err error) error {
	return &core.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Err:      core.ErrNetwork,
	}
}

// DecodeError wraps a response parsing failure.
func DecodeError(provider string, err error) error {
	return &core.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Err:      core.ErrDecode,
	}
}

// ProviderError builds a ProviderError. An empty message becomes the
// status text and a nil sentinel is derived from the status.
func ProviderError(provider string, status int, requestID, code, message string, sentinel error) error {
	if message == "" {
		message = http.StatusText(status)
	}
	if sentinel == nil {
		sentinel = SentinelForStatus(status)
	}
	return &core.ProviderError{
		Provider:  provider,
		Status:    status,
		RequestID: requestID,
		Code:      code,
		Message:   message,
		Err:       sentinel,
	}
}

// SentinelForStatus maps an HTTP status code to a core sentinel error.
// 403 is kept apart from 401 because image endpoints return it for
// transient access failures that are safe to retry.
func SentinelForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return core.ErrBadRequest
	case http.StatusUnauthorized:
		return core.ErrUnauthorized
	case http.StatusForbidden:
		return core.ErrForbidden
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusTooManyRequests:
		return core.ErrRateLimited
	default:
		return core.ErrServer
	}
}
