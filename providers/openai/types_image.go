package openai

// imageRequest is the JSON body of POST /images/generations.
type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// imageResponse is returned by both the generations and edits endpoints.
type imageResponse struct {
	Created      int64        `json:"created"`
	Data         []imageData  `json:"data"`
	Quality      string       `json:"quality,omitempty"`
	Size         string       `json:"size,omitempty"`
	OutputFormat string       `json:"output_format,omitempty"`
	Usage        *imageUsage  `json:"usage,omitempty"`
	Error        *imageAPIErr `json:"error,omitempty"`
}

type imageData struct {
	B64JSON       string `json:"b64_json,omitempty"`
	URL           string `json:"url,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type imageUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

type imageAPIErr struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}
