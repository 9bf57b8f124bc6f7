package commands

import (
	"testing"
)

func TestListModels(t *testing.T) {
	app := newTestApp(t)

	if err := app.run("list-models"); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	want := `Available image generation models:

Google:
  - gemini-3-pro-image-preview (default)
  - gemini-3-pro-image-preview-mini
OpenAI:
  - gpt-image-1.5 (default)
  - gpt-image-1.5-mini

Use --model <model_name> to select a specific model
`
	if got := app.stdout.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestProviderTitle(t *testing.T) {
	tests := map[string]string{
		"openai": "OpenAI",
		"google": "Google",
		"":       "",
	}
	for in, want := range tests {
		if got := providerTitle(in); got != want {
			t.Errorf("providerTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
