package batch

import (
	"fmt"
	"io"
	"strings"

	"github.com/petal-labs/imggen/core"
)

var providerDisplayNames = map[string]string{
	core.ProviderOpenAI: "OpenAI",
	core.ProviderGoogle: "Google",
}

func displayName(provider string) string {
	if name, ok := providerDisplayNames[provider]; ok {
		return name
	}
	return provider
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func printConfiguration(w io.Writer, plan Plan, o *Outcome) {
	n := len(o.Slots)
	fmt.Fprintf(w, "Generating %d %s with %s (%s)\n\n", n, plural(n, "image"), displayName(o.Provider), o.Model)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Prompt: %q\n", plan.Prompt)
	if plan.Quality != "" {
		fmt.Fprintf(w, "  Quality: %s\n", plan.Quality)
	}
	if plan.Resolution != "" {
		fmt.Fprintf(w, "  Resolution: %s\n", plan.Resolution)
	}
	if plan.AspectRatio != "" {
		fmt.Fprintf(w, "  Aspect ratio: %s\n", plan.AspectRatio)
	}
	if plan.InputFidelity != "" {
		fmt.Fprintf(w, "  Input fidelity: %s\n", plan.InputFidelity)
	}
	if len(plan.References) > 0 {
		fmt.Fprintf(w, "  Reference images: %s\n", strings.Join(plan.References, ", "))
	}
	fmt.Fprintf(w, "  Variations: %d\n", n)

	first := joinPath(o.OutputDir, o.Slots[0].Filename)
	if n == 1 {
		fmt.Fprintf(w, "  Output: %s\n", first)
	} else {
		fmt.Fprintf(w, "  Output: %s ... %s\n", first, joinPath(o.OutputDir, o.Slots[n-1].Filename))
	}
	fmt.Fprintf(w, "\nEstimated cost: $%.2f\n", o.EstimatedCost)
}

func printDryRun(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run without --dry-run to generate images.")
}

func printSlotSucceeded(w io.Writer, s *Slot, total int) {
	fmt.Fprintf(w, "  [%d/%d] Generating %s... ✓\n", s.Index, total, s.Filename)
}

func printSlotFailed(w io.Writer, s *Slot, total int) {
	fmt.Fprintf(w, "  [%d/%d] Generating %s... ✗\n", s.Index, total, s.Filename)
}

func printSlotSkipped(w io.Writer, s *Slot, total int) {
	fmt.Fprintf(w, "  [%d/%d] Generating %s... skipped\n", s.Index, total, s.Filename)
}

func printSummary(w io.Writer, o *Outcome) {
	attempted := o.Succeeded + o.Failed

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, "Generation complete!")
	fmt.Fprintf(w, "  Successful: %d/%d\n", o.Succeeded, attempted)
	if o.Failed > 0 {
		fmt.Fprintf(w, "  Failed: %d/%d\n", o.Failed, attempted)
	}
	if o.Skipped > 0 {
		fmt.Fprintf(w, "  Not attempted: %d/%d\n", o.Skipped, len(o.Slots))
	}
	if o.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, s := range o.Slots {
			if s.Attempted && s.Err != nil {
				fmt.Fprintf(w, "  - %s: %v\n", s.Filename, s.Err)
			}
		}
	}
	if o.RateLimited {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Rate limit reached: remaining images were not generated.")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Actual cost: $%.2f\n", o.ActualCost)
	fmt.Fprintf(w, "Output directory: %s\n", o.OutputDir)
}
