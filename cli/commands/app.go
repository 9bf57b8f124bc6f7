// Package commands implements the imggen command line using Cobra.
package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/petal-labs/imggen/cli/config"
	"github.com/petal-labs/imggen/cli/keystore"
	"github.com/petal-labs/imggen/providers"

	// Built-in adapters register themselves.
	_ "github.com/petal-labs/imggen/providers/gemini"
	_ "github.com/petal-labs/imggen/providers/openai"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// KeystoreFactory opens the API key store.
type KeystoreFactory func() (keystore.Keystore, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig    ConfigLoader
	openKeystore  KeystoreFactory
	registrations []providers.Registration
	getenv        func(string) string
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer

	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger

	gen generateFlags
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithKeystoreFactory injects a keystore factory dependency.
func WithKeystoreFactory(factory KeystoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.openKeystore = factory
		}
	}
}

// WithRegistrations replaces the globally registered adapters.
func WithRegistrations(regs ...providers.Registration) AppOption {
	return func(a *App) {
		a.registrations = regs
	}
}

// WithEnv replaces the environment lookup used for API keys.
func WithEnv(getenv func(string) string) AppOption {
	return func(a *App) {
		if getenv != nil {
			a.getenv = getenv
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:   config.LoadConfig,
		openKeystore: keystore.NewKeystore,
		getenv:       os.Getenv,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "imggen [reference images...]",
		Short: "Generate images using AI providers (OpenAI, Google)",
		Long: `imggen generates images with OpenAI or Google Gemini image models.

Each run requests 1-4 variations in parallel, writes every image next to a
JSON metadata file, and reports the estimated and actual cost.`,
		Example: `  imggen -p "a serene landscape"
  imggen -p "sunset" --output landscape.png
  imggen -p "art" --output art.png -n 4
  imggen -f prompt.txt --variations 4 --output ./images/
  imggen -p "test" ref1.jpg ref2.jpg --output ./images/`,
		Args:    cobra.ArbitraryArgs,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		RunE:         a.runGenerate,
		SilenceUsage: true,
	}
	root.SetVersionTemplate("imggen {{.Version}}\n")
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.imggen/config.yaml)")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	a.gen.register(root.Flags())
	root.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "out-dir" {
			name = "output"
		}
		return pflag.NormalizedName(name)
	})

	root.AddCommand(a.newListModelsCommand())
	root.AddCommand(a.newSetupCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command.
func (a *App) Execute() error {
	return a.root.Execute()
}

// ExecuteContext runs the root command with ctx; cancelling ctx stops
// dispatching new images.
func (a *App) ExecuteContext(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

func (a *App) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return config.DefaultConfigPath()
}

func (a *App) initConfig() error {
	a.logger = newLogger(a.stderr, a.verbose)

	cfg, err := a.loadConfig(a.configPath())
	if err != nil {
		return exitWithCode(ExitError, err)
	}
	a.cfg = cfg
	return nil
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}

// ExecuteContext runs the default app root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return defaultApp.ExecuteContext(ctx)
}
