package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ImageQuality is the OpenAI rendering quality tier.
type ImageQuality string

const (
	ImageQualityLow    ImageQuality = "low"
	ImageQualityMedium ImageQuality = "medium"
	ImageQualityHigh   ImageQuality = "high"
)

// ImageQualities lists the accepted quality tiers in display order.
var ImageQualities = []ImageQuality{ImageQualityLow, ImageQualityMedium, ImageQualityHigh}

// IsValid reports whether the image quality is a recognized value.
func (q ImageQuality) IsValid() bool {
	switch q {
	case ImageQualityLow, ImageQualityMedium, ImageQualityHigh:
		return true
	default:
		return false
	}
}

// ImageResolution is the Google output resolution tier.
type ImageResolution string

const (
	ImageResolution1K ImageResolution = "1K"
	ImageResolution2K ImageResolution = "2K"
	ImageResolution4K ImageResolution = "4K"
)

// ImageResolutions lists the accepted resolutions in display order.
var ImageResolutions = []ImageResolution{ImageResolution1K, ImageResolution2K, ImageResolution4K}

// IsValid reports whether the resolution is a recognized value.
func (r ImageResolution) IsValid() bool {
	switch r {
	case ImageResolution1K, ImageResolution2K, ImageResolution4K:
		return true
	default:
		return false
	}
}

// AspectRatio is a width:height ratio understood by both providers.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio3x4  AspectRatio = "3:4"
)

// AspectRatios lists the accepted aspect ratios in display order.
var AspectRatios = []AspectRatio{AspectRatio1x1, AspectRatio16x9, AspectRatio9x16, AspectRatio4x3, AspectRatio3x4}

// IsValid reports whether the aspect ratio is a recognized value.
func (a AspectRatio) IsValid() bool {
	switch a {
	case AspectRatio1x1, AspectRatio16x9, AspectRatio9x16, AspectRatio4x3, AspectRatio3x4:
		return true
	default:
		return false
	}
}

// ImageInputFidelity represents the input image preservation level.
type ImageInputFidelity string

const (
	ImageInputFidelityLow  ImageInputFidelity = "low"
	ImageInputFidelityHigh ImageInputFidelity = "high"
)

// ImageInputFidelities lists the accepted fidelity values in display order.
var ImageInputFidelities = []ImageInputFidelity{ImageInputFidelityHigh, ImageInputFidelityLow}

// IsValid reports whether the input fidelity is a recognized value.
func (f ImageInputFidelity) IsValid() bool {
	switch f {
	case ImageInputFidelityLow, ImageInputFidelityHigh:
		return true
	default:
		return false
	}
}

// GenerationRequest describes one image slot. It is built once per slot
// before dispatch and never mutated afterwards.
type GenerationRequest struct {
	Prompt     string
	References []string // reference image paths, in order
	OutputDir  string
	Filename   string

	// Optional parameters; zero values mean "provider default".
	AspectRatio   AspectRatio
	Quality       ImageQuality
	Resolution    ImageResolution
	Model         string
	InputFidelity ImageInputFidelity
}

// OutputPath returns the path the image is written to.
func (r *GenerationRequest) OutputPath() string {
	return filepath.Join(r.OutputDir, r.Filename)
}

// ModelOr returns the request's model override, or def when none was given.
func (r *GenerationRequest) ModelOr(def string) string {
	if r.Model != "" {
		return r.Model
	}
	return def
}

// Field is a provider-specific metadata entry.
// A nil Value means the provider did not report it.
type Field struct {
	Key   string
	Value any
}

// GeneratedImage is the success result of a single generation call.
// Optional fields are nil when the provider did not report them.
type GeneratedImage struct {
	Filename      string
	RevisedPrompt *string
	Created       *string
	Quality       *string
	Size          *string
	CostUSD       *float64

	// Extras holds provider-specific fields in the order they should be
	// persisted.
	Extras []Field
}

// String returns a pointer to s, for populating optional result fields.
func String(s string) *string {
	return &s
}

// Float64 returns a pointer to f, for populating optional result fields.
func Float64(f float64) *float64 {
	return &f
}

// ReferenceImage is a reference image loaded from disk.
type ReferenceImage struct {
	Path     string
	Filename string
	MIMEType string
	Data     []byte
}

// LoadReferences reads every reference image in order. It fails with
// ErrTooManyReferences when more than limit paths are given (limit <= 0
// disables the check) and with a *ReferenceNotFoundError naming the first
// missing path. Each file is closed before the next one is opened.
func LoadReferences(provider string, paths []string, limit int) ([]ReferenceImage, error) {
	if limit > 0 && len(paths) > limit {
		return nil, &ProviderError{
			Provider: provider,
			Code:     "too_many_references",
			Message:  fmt.Sprintf("too many reference images: %d. Max %d allowed", len(paths), limit),
			Err:      ErrTooManyReferences,
		}
	}

	refs := make([]ReferenceImage, 0, len(paths))
	for _, p := range paths {
		ref, err := loadReference(p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func loadReference(path string) (ReferenceImage, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ReferenceImage{}, &ReferenceNotFoundError{Path: path}
		}
		return ReferenceImage{}, fmt.Errorf("failed to open reference image %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ReferenceImage{}, fmt.Errorf("failed to read reference image %s: %w", path, err)
	}

	name := filepath.Base(path)
	return ReferenceImage{
		Path:     path,
		Filename: name,
		MIMEType: DetectImageMIME(name, data),
		Data:     data,
	}, nil
}

// DetectImageMIME detects the MIME type from filename extension or magic bytes.
func DetectImageMIME(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}

	if len(data) >= 12 {
		// PNG: 89 50 4E 47
		if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
			return "image/png"
		}
		// JPEG: FF D8 FF
		if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
			return "image/jpeg"
		}
		// WebP: RIFF....WEBP
		if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
			return "image/webp"
		}
	}

	return "image/png"
}

// WriteImageFile stores image bytes at path. A partially written file is
// removed so a failed write leaves nothing behind.
func WriteImageFile(path string, data []byte) error {
	if len(data) == 0 {
		return ErrNoImageData
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write image %s: %w", filepath.Base(path), err)
	}
	return nil
}

// JoinValues renders a list of enum values as "a, b, c" for help text and
// validation messages.
func JoinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
