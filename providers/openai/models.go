// Package openai provides the OpenAI Image API adapter for imggen.
package openai

// Image models.
const (
	ModelGPTImage15    = "gpt-image-1.5"
	ModelGPTImage1     = "gpt-image-1"
	ModelGPTImage1Mini = "gpt-image-1-mini"
)

// DefaultModel is used when a request names no model.
const DefaultModel = ModelGPTImage15

// MaxReferenceImages is the most reference images an edit request accepts.
const MaxReferenceImages = 16

// Models lists the known image models, default first.
var Models = []string{ModelGPTImage15, ModelGPTImage1, ModelGPTImage1Mini}

// ModelPrefixes are the model-name prefixes served by this adapter.
var ModelPrefixes = []string{"gpt-", "dall-e", "chatgpt-image"}
