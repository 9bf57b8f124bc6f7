package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/petal-labs/imggen/core"
)

// imageCall is one fully resolved request, rebuilt on every attempt.
type imageCall struct {
	model         string
	prompt        string
	size          string
	quality       string
	inputFidelity core.ImageInputFidelity
	references    []core.ReferenceImage
}

// GenerateImage generates one image and writes it to req.OutputPath().
//
// Requests without references use /images/generations; requests with
// references use /images/edits. A 403 response is retried according to
// the configured RetryPolicy. A 429 response fails with core.ErrRateLimited.
func (p *OpenAI) GenerateImage(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
	if req.InputFidelity != "" && !req.InputFidelity.IsValid() {
		return nil, &core.ProviderError{
			Provider: core.ProviderOpenAI,
			Code:     "invalid_input_fidelity",
			Message: fmt.Sprintf("invalid input_fidelity: %s. Valid values: %s",
				req.InputFidelity, core.JoinValues(core.ImageInputFidelities)),
			Err: core.ErrInvalidOption,
		}
	}

	call := imageCall{
		model:         req.ModelOr(DefaultModel),
		prompt:        promptWithAspect(req.Prompt, req.AspectRatio),
		size:          sizeFor(req.AspectRatio),
		quality:       qualityFor(req.Quality),
		inputFidelity: req.InputFidelity,
	}

	if len(req.References) > 0 {
		refs, err := core.LoadReferences(core.ProviderOpenAI, req.References, MaxReferenceImages)
		if err != nil {
			return nil, err
		}
		call.references = refs
	}

	var resp *imageResponse
	err := core.Retry(ctx, p.config.RetryPolicy, func(ctx context.Context) error {
		r, err := p.doImageRequest(ctx, call)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, p.retryNotifier(req.Filename))
	if err != nil {
		return nil, err
	}

	data, err := decodeImage(resp)
	if err != nil {
		return nil, err
	}
	if err := core.WriteImageFile(req.OutputPath(), data); err != nil {
		return nil, err
	}

	return buildResult(req.Filename, call.prompt, call.quality, call.size, resp), nil
}

func (p *OpenAI) retryNotifier(filename string) core.RetryNotify {
	return func(retry int, delay time.Duration, err error) {
		p.config.Logger.Warn("retrying image request",
			zap.String("provider", core.ProviderOpenAI),
			zap.String("filename", filename),
			zap.Int("retry", retry),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}

// doImageRequest performs a single HTTP attempt.
func (p *OpenAI) doImageRequest(ctx context.Context, call imageCall) (*imageResponse, error) {
	httpReq, err := p.newImageRequest(ctx, call)
	if err != nil {
		return nil, err
	}

	resp, err := p.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, newNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, normalizeError(resp.StatusCode, body, resp.Header.Get("x-request-id"))
	}

	var out imageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newDecodeError(err)
	}
	if out.Error != nil {
		return nil, &core.ProviderError{
			Provider:  core.ProviderOpenAI,
			Status:    resp.StatusCode,
			RequestID: resp.Header.Get("x-request-id"),
			Code:      out.Error.Code,
			Message:   out.Error.Message,
			Err:       core.ErrBadRequest,
		}
	}
	return &out, nil
}

func (p *OpenAI) newImageRequest(ctx context.Context, call imageCall) (*http.Request, error) {
	if len(call.references) == 0 {
		body, err := json.Marshal(imageRequest{
			Model:   call.model,
			Prompt:  call.prompt,
			N:       1,
			Size:    call.size,
			Quality: call.quality,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/images/generations", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header = p.buildHeaders()
		return httpReq, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"model", call.model},
		{"prompt", call.prompt},
		{"n", "1"},
		{"size", call.size},
		{"quality", call.quality},
	}
	if call.inputFidelity != "" {
		fields = append(fields, [2]string{"input_fidelity", string(call.inputFidelity)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	for _, ref := range call.references {
		part, err := createFormFile(w, "image[]", ref)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(ref.Data); err != nil {
			return nil, fmt.Errorf("failed to write image data: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/images/edits", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = p.buildHeaders()
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	return httpReq, nil
}

// createFormFile creates a multipart file part carrying the image's MIME type.
func createFormFile(w *multipart.Writer, fieldName string, ref core.ReferenceImage) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, ref.Filename))
	h.Set("Content-Type", ref.MIMEType)
	return w.CreatePart(h)
}

// decodeImage extracts the first image's bytes from the response.
func decodeImage(resp *imageResponse) ([]byte, error) {
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, &core.ProviderError{
			Provider: core.ProviderOpenAI,
			Message:  "No image data in response",
			Err:      core.ErrNoImageData,
		}
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, newDecodeError(fmt.Errorf("invalid image data: %w", err))
	}
	return data, nil
}
