package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petal-labs/imggen/cli/config"
)

func (a *App) newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure API keys",
		Long: `Configure API keys and the default provider.

Keys are entered without echo and stored in the encrypted keystore
(~/.imggen/keys.enc). Leave a key blank to keep the current value.
Environment variables (OPENAI_API_KEY, GEMINI_API_KEY, GOOGLE_API_KEY)
take precedence over stored keys.`,
		Args: cobra.NoArgs,
		RunE: a.runSetup,
	}
}

func (a *App) runSetup(cmd *cobra.Command, args []string) error {
	ks, err := a.openKeystore()
	if err != nil {
		return exitWithCode(ExitError, fmt.Errorf("failed to open keystore: %w", err))
	}
	stored, err := ks.List()
	if err != nil {
		return exitWithCode(ExitError, fmt.Errorf("failed to read keystore: %w", err))
	}
	have := make(map[string]bool, len(stored))
	for _, name := range stored {
		have[name] = true
	}

	in := bufio.NewReader(a.stdin)
	registry := a.newRegistry()
	names := registry.Names()

	fmt.Fprintln(a.stdout, "imggen setup")
	fmt.Fprintln(a.stdout)

	configured := 0
	for _, name := range names {
		status := "not set"
		if have[name] {
			status = "stored"
		}
		fmt.Fprintf(a.stdout, "Enter API key for %s [%s]: ", providerTitle(name), status)
		key, err := a.readSecret(in)
		if err != nil {
			return exitWithCode(ExitError, fmt.Errorf("failed to read key: %w", err))
		}
		if key == "" {
			if have[name] {
				configured++
			}
			continue
		}
		if err := ks.Set(name, key); err != nil {
			return exitWithCode(ExitError, fmt.Errorf("failed to store key: %w", err))
		}
		fmt.Fprintf(a.stdout, "API key for %s stored.\n", providerTitle(name))
		configured++
	}

	if configured == 0 {
		return exitWithCode(ExitError, errors.New("no API keys configured"))
	}

	current := registry.DefaultProviderName()
	fmt.Fprintf(a.stdout, "Default provider (%s) [%s]: ", strings.Join(names, ", "), current)
	choice, err := readLine(in)
	if err != nil {
		return exitWithCode(ExitError, fmt.Errorf("failed to read default provider: %w", err))
	}
	if choice != "" && choice != current {
		if _, err := registry.DefaultModel(choice); err != nil {
			return exitWithCode(ExitError, fmt.Errorf("%w (available: %s)", err, strings.Join(names, ", ")))
		}
		if err := a.saveDefaultProvider(choice); err != nil {
			return exitWithCode(ExitError, fmt.Errorf("failed to save config: %w", err))
		}
	}

	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "Setup complete.")
	return nil
}

func (a *App) saveDefaultProvider(name string) error {
	cfg := a.cfg
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.DefaultProvider = name
	return config.SaveConfig(a.configPath(), cfg)
}

// readSecret reads a key without echo when stdin is a terminal, and a
// plain line otherwise (e.g. piped input).
func (a *App) readSecret(in *bufio.Reader) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stdout) // Newline after hidden input
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

// readLine reads one trimmed line. EOF after partial or no input is not
// an error.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
