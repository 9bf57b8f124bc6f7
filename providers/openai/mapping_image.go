package openai

import (
	"fmt"
	"time"

	"github.com/petal-labs/imggen/core"
)

// DefaultSize is requested when no aspect ratio is given.
const DefaultSize = "1024x1024"

// aspectSizes maps an aspect ratio to the requested pixel size.
var aspectSizes = map[core.AspectRatio]string{
	core.AspectRatio1x1:  "1024x1024",
	core.AspectRatio16x9: "1792x1024",
	core.AspectRatio9x16: "1024x1792",
	core.AspectRatio4x3:  "1360x1024",
	core.AspectRatio3x4:  "1024x1360",
}

// sizeFor returns the pixel size for an aspect ratio.
func sizeFor(a core.AspectRatio) string {
	if size, ok := aspectSizes[a]; ok {
		return size
	}
	return DefaultSize
}

// qualityFor returns the API quality value; unset or unknown becomes low.
func qualityFor(q core.ImageQuality) string {
	if q.IsValid() {
		return string(q)
	}
	return string(core.ImageQualityLow)
}

// promptWithAspect appends the aspect ratio hint to the prompt.
func promptWithAspect(prompt string, a core.AspectRatio) string {
	if a == "" {
		return prompt
	}
	return fmt.Sprintf("%s\n\n[aspect_ratio: %s]", prompt, a)
}

type priceKey struct {
	quality string
	size    string
}

// imagePrices is the per-image price by returned quality and size.
var imagePrices = map[priceKey]float64{
	{"low", "1024x1024"}:    0.009,
	{"medium", "1024x1024"}: 0.034,
	{"high", "1024x1024"}:   0.133,
	{"low", "1024x1536"}:    0.013,
	{"low", "1536x1024"}:    0.013,
	{"medium", "1024x1536"}: 0.050,
	{"medium", "1536x1024"}: 0.050,
	{"high", "1024x1536"}:   0.200,
	{"high", "1536x1024"}:   0.200,
}

// ImageCost returns the price of one image. Unlisted combinations cost 0.
func ImageCost(quality, size string) float64 {
	return imagePrices[priceKey{quality, size}]
}

// buildResult maps a response onto the uniform result. Fields the API
// leaves empty fall back to what was requested.
func buildResult(filename, sentPrompt, quality, size string, resp *imageResponse) *core.GeneratedImage {
	revised := sentPrompt
	if len(resp.Data) > 0 && resp.Data[0].RevisedPrompt != "" {
		revised = resp.Data[0].RevisedPrompt
	}
	if resp.Quality != "" {
		quality = resp.Quality
	}
	if resp.Size != "" {
		size = resp.Size
	}

	img := &core.GeneratedImage{
		Filename:      filename,
		RevisedPrompt: core.String(revised),
		Created:       core.String(time.Unix(resp.Created, 0).UTC().Format(time.RFC3339)),
		Quality:       core.String(quality),
		Size:          core.String(size),
		CostUSD:       core.Float64(ImageCost(quality, size)),
	}
	if resp.Usage != nil {
		img.Extras = []core.Field{
			{Key: "input_tokens", Value: resp.Usage.InputTokens},
			{Key: "output_tokens", Value: resp.Usage.OutputTokens},
		}
	}
	return img
}
