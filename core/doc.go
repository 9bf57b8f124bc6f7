// Package core defines the provider-neutral types shared by imggen's
// providers, the batch orchestrator and the CLI.
//
// # Providers
//
// Every image backend implements [ImageProvider]:
//
//	type ImageProvider interface {
//	    ID() string
//	    DefaultModel() string
//	    GenerateImage(ctx context.Context, req *GenerationRequest) (*GeneratedImage, error)
//	}
//
// A successful call writes exactly one file to req.OutputDir/req.Filename and
// returns its metadata. A failed call writes nothing and returns an error.
// Providers MUST be safe for concurrent use: the batch runner calls
// GenerateImage from several goroutines at once with distinct filenames.
//
// # Errors
//
// Remote failures are reported as [*ProviderError] values that wrap a
// sentinel, so callers classify with errors.Is:
//
//	img, err := provider.GenerateImage(ctx, req)
//	if errors.Is(err, core.ErrRateLimited) {
//	    // stop starting new work
//	}
//
// Local validation failures wrap [ErrInvalidOption], [ErrReferenceNotFound]
// or [ErrTooManyReferences] and never reach the network.
//
// # Retries
//
// [RetryPolicy] decides whether a failed attempt is repeated. The OpenAI
// provider uses [FixedDelayPolicy] to ride out transient 403 responses; all
// other errors surface on the first attempt.
package core
