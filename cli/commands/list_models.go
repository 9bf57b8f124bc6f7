package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// providerTitles holds display names that differ from simple capitalisation.
var providerTitles = map[string]string{
	"openai": "OpenAI",
}

func providerTitle(name string) string {
	if t, ok := providerTitles[name]; ok {
		return t
	}
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (a *App) newListModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-models",
		Short: "List available image generation models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			registry := a.newRegistry()

			fmt.Fprintln(a.stdout, "Available image generation models:")
			fmt.Fprintln(a.stdout)
			for _, name := range registry.Names() {
				fmt.Fprintf(a.stdout, "%s:\n", providerTitle(name))
				for i, model := range registry.ModelsFor(name) {
					if i == 0 {
						fmt.Fprintf(a.stdout, "  - %s (default)\n", model)
						continue
					}
					fmt.Fprintf(a.stdout, "  - %s\n", model)
				}
			}
			fmt.Fprintln(a.stdout)
			fmt.Fprintln(a.stdout, "Use --model <model_name> to select a specific model")
		},
	}
}
