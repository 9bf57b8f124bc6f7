// Package gemini provides the Google Gemini image adapter for imggen,
// built on the google.golang.org/genai SDK.
package gemini

// Image models.
const (
	ModelGemini3ProImage    = "gemini-3-pro-image-preview"
	ModelGemini25FlashImage = "gemini-2.5-flash-image"
)

// DefaultModel is used when a request names no model.
const DefaultModel = ModelGemini3ProImage

// MaxReferenceImages is the most reference images one request accepts.
const MaxReferenceImages = 14

// Models lists the known image models, default first.
var Models = []string{ModelGemini3ProImage, ModelGemini25FlashImage}

// ModelPrefixes are the model-name prefixes served by this adapter.
var ModelPrefixes = []string{"gemini-", "google-", "imagen"}
