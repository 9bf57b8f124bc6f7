// Package pricing holds the per-image price lookup used for cost estimates.
package pricing

import "github.com/petal-labs/imggen/core"

// Defaults applied when a request leaves the tier unset.
const (
	DefaultQuality    = core.ImageQualityLow
	DefaultResolution = core.ImageResolution1K
)

// Table maps (provider, quality|resolution) to a USD price per image.
// A Table is immutable once built and safe to share between goroutines.
type Table struct {
	openai map[core.ImageQuality]float64
	google map[core.ImageResolution]float64
}

// Default returns the published list prices.
//
// OpenAI prices are for 1024x1024 output of gpt-image-1.5. Google prices
// are per image for gemini-3-pro-image-preview; 1K and 2K cost the same.
func Default() Table {
	return New(
		map[core.ImageQuality]float64{
			core.ImageQualityLow:    0.009,
			core.ImageQualityMedium: 0.034,
			core.ImageQualityHigh:   0.133,
		},
		map[core.ImageResolution]float64{
			core.ImageResolution1K: 0.134,
			core.ImageResolution2K: 0.134,
			core.ImageResolution4K: 0.24,
		},
	)
}

// New builds a Table from the given price maps. The maps are copied.
func New(openai map[core.ImageQuality]float64, google map[core.ImageResolution]float64) Table {
	t := Table{
		openai: make(map[core.ImageQuality]float64, len(openai)),
		google: make(map[core.ImageResolution]float64, len(google)),
	}
	for k, v := range openai {
		t.openai[k] = v
	}
	for k, v := range google {
		t.google[k] = v
	}
	return t
}

// CostPerImage returns the estimated price of one image.
//
// OpenAI is priced by quality and Google by resolution; the other
// parameter is ignored. Unset or unknown tiers fall back to the default
// tier. Unknown providers cost 0.
func (t Table) CostPerImage(provider string, quality core.ImageQuality, resolution core.ImageResolution) float64 {
	switch provider {
	case core.ProviderOpenAI:
		if price, ok := t.openai[quality]; ok {
			return price
		}
		return t.openai[DefaultQuality]
	case core.ProviderGoogle:
		if price, ok := t.google[resolution]; ok {
			return price
		}
		return t.google[DefaultResolution]
	default:
		return 0
	}
}

// Estimate returns the estimated price of count images.
func (t Table) Estimate(provider string, quality core.ImageQuality, resolution core.ImageResolution, count int) float64 {
	return t.CostPerImage(provider, quality, resolution) * float64(count)
}
