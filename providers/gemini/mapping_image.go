package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/petal-labs/imggen/core"
)

// Token prices in USD per million tokens.
const (
	inputPricePerMillion       = 2.0
	outputPricePerMillion      = 120.0
	batchInputPricePerMillion  = 1.0
	batchOutputPricePerMillion = 60.0
)

// unknownFinishReason is recorded when no candidate reports a finish reason.
const unknownFinishReason = "UNKNOWN"

// promptWithHints appends the aspect ratio and resolution hints that are set.
func promptWithHints(prompt string, a core.AspectRatio, r core.ImageResolution) string {
	var hints []string
	if a != "" {
		hints = append(hints, "aspect_ratio: "+string(a))
	}
	if r != "" {
		hints = append(hints, "quality: "+string(r))
	}
	if len(hints) == 0 {
		return prompt
	}
	return fmt.Sprintf("%s\n\n[%s]", prompt, strings.Join(hints, ", "))
}

// buildContents returns the single user turn: prompt text, then the
// reference images as inline parts in order.
func buildContents(prompt string, refs []core.ReferenceImage) []*genai.Content {
	parts := make([]*genai.Part, 0, 1+len(refs))
	parts = append(parts, &genai.Part{Text: prompt})
	for _, ref := range refs {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: ref.MIMEType, Data: ref.Data},
		})
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

// buildConfig asks for text and image output when references are given.
func buildConfig(hasRefs bool) *genai.GenerateContentConfig {
	if !hasRefs {
		return nil
	}
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
}

// firstImage returns the first inline image payload in the response.
func firstImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// usageTokens returns prompt and output token counts, zero when absent.
func usageTokens(resp *genai.GenerateContentResponse) (prompt, output int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}

// TokenCost returns the price of a call from its token usage.
func TokenCost(promptTokens, outputTokens int, batch bool) float64 {
	in, out := inputPricePerMillion, outputPricePerMillion
	if batch {
		in, out = batchInputPricePerMillion, batchOutputPricePerMillion
	}
	return float64(promptTokens)*in/1e6 + float64(outputTokens)*out/1e6
}

// buildResult maps a response onto the uniform result.
func buildResult(filename, model string, batch bool, resp *genai.GenerateContentResponse) *core.GeneratedImage {
	modelVersion := model
	if resp.ModelVersion != "" {
		modelVersion = resp.ModelVersion
	}

	finish := unknownFinishReason
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].FinishReason != "" {
		finish = string(resp.Candidates[0].FinishReason)
	}

	var responseID any
	if resp.ResponseID != "" {
		responseID = resp.ResponseID
	}

	promptTokens, outputTokens := usageTokens(resp)
	return &core.GeneratedImage{
		Filename: filename,
		CostUSD:  core.Float64(TokenCost(promptTokens, outputTokens, batch)),
		Extras: []core.Field{
			{Key: "model_version", Value: modelVersion},
			{Key: "response_id", Value: responseID},
			{Key: "finish_reason", Value: finish},
			{Key: "prompt_tokens", Value: promptTokens},
			{Key: "output_tokens", Value: outputTokens},
		},
	}
}
