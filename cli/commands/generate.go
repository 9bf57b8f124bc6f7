package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/petal-labs/imggen/batch"
	"github.com/petal-labs/imggen/core"
)

// generateFlags holds the root command's generation flags.
type generateFlags struct {
	prompt        string
	promptFile    string
	references    string
	output        string
	variations    int
	model         string
	provider      string
	quality       string
	resolution    string
	aspectRatio   string
	inputFidelity string
	dryRun        bool
}

func (f *generateFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.prompt, "prompt", "p", "", "inline prompt text")
	fs.StringVarP(&f.promptFile, "file", "f", "", "path to file containing prompt")
	fs.StringVarP(&f.references, "references", "r", "", "path to file containing reference image paths (one per line)")
	fs.StringVar(&f.output, "output", ".", "output directory or filename")
	fs.IntVarP(&f.variations, "variations", "n", 1,
		fmt.Sprintf("number of variations (%d-%d)", batch.MinVariations, batch.MaxVariations))
	fs.StringVarP(&f.model, "model", "m", "", "model name; selects the provider (e.g. gpt-image-1.5, gemini-3-pro-image-preview)")
	fs.StringVar(&f.provider, "provider", "", "provider when no model is given (openai, google)")
	fs.StringVarP(&f.quality, "quality", "q", "", "OpenAI quality: "+core.JoinValues(core.ImageQualities)+" (default low)")
	fs.StringVar(&f.resolution, "resolution", "", "Google resolution: "+core.JoinValues(core.ImageResolutions)+" (default 1K)")
	fs.StringVarP(&f.aspectRatio, "aspect-ratio", "a", "", "aspect ratio: "+core.JoinValues(core.AspectRatios))
	fs.StringVar(&f.inputFidelity, "input-fidelity", "", "OpenAI input fidelity for reference images: "+core.JoinValues(core.ImageInputFidelities))
	fs.BoolVar(&f.dryRun, "dry-run", false, "show cost estimate without generating")
}

// validate checks flag combinations and enumerated values before any
// file or network access.
func (f *generateFlags) validate(positional []string) error {
	if f.aspectRatio != "" && !core.AspectRatio(f.aspectRatio).IsValid() {
		return invalidOption("aspect ratio", f.aspectRatio, core.JoinValues(core.AspectRatios))
	}
	if f.quality != "" && !core.ImageQuality(f.quality).IsValid() {
		return invalidOption("quality level", f.quality, core.JoinValues(core.ImageQualities))
	}
	if f.resolution != "" && !core.ImageResolution(f.resolution).IsValid() {
		return invalidOption("resolution", f.resolution, core.JoinValues(core.ImageResolutions))
	}
	if f.variations < batch.MinVariations || f.variations > batch.MaxVariations {
		return fmt.Errorf("Variations must be between %d and %d, got %d",
			batch.MinVariations, batch.MaxVariations, f.variations)
	}
	if f.prompt == "" && f.promptFile == "" {
		return errors.New("Must provide either --prompt or --file")
	}
	if f.prompt != "" && f.promptFile != "" {
		return errors.New("Cannot specify both --prompt and --file")
	}
	if len(positional) > 0 && f.references != "" {
		return errors.New("Cannot specify both positional reference images and --references file")
	}
	if f.inputFidelity != "" && !core.ImageInputFidelity(f.inputFidelity).IsValid() {
		return invalidOption("input_fidelity", f.inputFidelity, core.JoinValues(core.ImageInputFidelities))
	}
	return nil
}

func invalidOption(name, value, valid string) error {
	return fmt.Errorf("Invalid %s: %s\nValid options: %s", name, value, valid)
}

func (a *App) runGenerate(cmd *cobra.Command, args []string) error {
	f := &a.gen
	if err := f.validate(args); err != nil {
		return exitWithCode(ExitError, err)
	}

	prompt, err := loadPrompt(f.prompt, f.promptFile)
	if err != nil {
		return exitWithCode(ExitError, err)
	}
	refs, err := loadReferences(args, f.references)
	if err != nil {
		return exitWithCode(ExitError, err)
	}

	plan := batch.Plan{
		Prompt:        prompt,
		References:    refs,
		Output:        f.output,
		Variations:    f.variations,
		Provider:      f.provider,
		Model:         f.model,
		Quality:       core.ImageQuality(f.quality),
		Resolution:    core.ImageResolution(f.resolution),
		AspectRatio:   core.AspectRatio(f.aspectRatio),
		InputFidelity: core.ImageInputFidelity(f.inputFidelity),
		DryRun:        f.dryRun,
	}
	a.applyConfigDefaults(&plan)

	registry := a.newRegistry()
	if plan.Provider == "" {
		plan.Provider = registry.DefaultProviderName()
	}

	runner := batch.NewRunner(registry,
		batch.WithOutput(a.stdout),
		batch.WithLogger(a.logger),
		batch.WithTelemetry(batch.NewLoggingTelemetryHook(a.logger)),
	)
	if _, err := runner.Run(cmd.Context(), plan); err != nil {
		return exitWithCode(ExitError, err)
	}
	return nil
}

// applyConfigDefaults fills provider and model from the config file. An
// explicit --provider suppresses the configured default model, which might
// belong to another provider.
func (a *App) applyConfigDefaults(plan *batch.Plan) {
	if a.cfg == nil {
		return
	}
	if plan.Model == "" && plan.Provider == "" {
		plan.Model = a.cfg.DefaultModel
	}
	if plan.Provider == "" {
		plan.Provider = a.cfg.DefaultProvider
	}
}
