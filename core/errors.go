package core

import (
	"errors"
	"fmt"
)

// ProviderError represents an error returned by a provider with full context.
type ProviderError struct {
	Provider  string
	Status    int
	RequestID string
	Code      string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (status=%d, code=%s, request_id=%s)",
			e.Provider, e.Message, e.Status, e.Code, e.RequestID)
	}
	if e.Status == 0 && e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s (status=%d, code=%s)",
		e.Provider, e.Message, e.Status, e.Code)
}

// Unwrap returns the underlying error for error chaining.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Sentinel errors for classification.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
	ErrNoImageData  = errors.New("no image data in response")
)

// Request validation errors. These are detected before any network call.
var (
	ErrInvalidOption     = errors.New("invalid option")
	ErrReferenceNotFound = errors.New("reference image not found")
	ErrTooManyReferences = errors.New("too many reference images")
)

// IsRateLimited reports whether err signals that the remote service is
// throttling requests.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ReferenceNotFoundError names the reference image path that does not exist.
type ReferenceNotFoundError struct {
	Path string
}

func (e *ReferenceNotFoundError) Error() string {
	return "reference image not found: " + e.Path
}

// Unwrap lets errors.Is match ErrReferenceNotFound.
func (e *ReferenceNotFoundError) Unwrap() error {
	return ErrReferenceNotFound
}
