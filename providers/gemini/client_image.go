package gemini

import (
	"context"

	"go.uber.org/zap"

	"github.com/petal-labs/imggen/core"
)

// GenerateImage generates one image and writes it to req.OutputPath().
//
// The first inline image in the response is saved. Quota exhaustion fails
// with core.ErrRateLimited. Input fidelity is an OpenAI option and is
// ignored here.
func (p *Gemini) GenerateImage(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
	model := req.ModelOr(DefaultModel)
	prompt := promptWithHints(req.Prompt, req.AspectRatio, req.Resolution)

	var refs []core.ReferenceImage
	if len(req.References) > 0 {
		loaded, err := core.LoadReferences(core.ProviderGoogle, req.References, MaxReferenceImages)
		if err != nil {
			return nil, err
		}
		refs = loaded
	}

	p.config.Logger.Debug("sending image request",
		zap.String("provider", core.ProviderGoogle),
		zap.String("model", model),
		zap.String("filename", req.Filename),
		zap.Int("references", len(refs)),
	)

	resp, err := p.generator.GenerateContent(ctx, model, buildContents(prompt, refs), buildConfig(len(refs) > 0))
	if err != nil {
		return nil, normalizeError(err)
	}

	data := firstImage(resp)
	if data == nil {
		return nil, &core.ProviderError{
			Provider: core.ProviderGoogle,
			Message:  "No image data in response",
			Err:      core.ErrNoImageData,
		}
	}
	if err := core.WriteImageFile(req.OutputPath(), data); err != nil {
		return nil, err
	}

	return buildResult(req.Filename, model, p.config.BatchPricing, resp), nil
}
