package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/logging"
	"github.com/fmueller/voxserve/internal/platform"
	"github.com/fmueller/voxserve/internal/reporting"
	"github.com/fmueller/voxserve/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	configPath string
	listen     string
	verbose    bool
	jsonLogs   bool
	noProgress bool
	model      string
	modelDir   string

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	lookupEnv func(string) (string, bool)
	logOutput io.Writer
	// onListen is called with the bound address once the HTTP listener is up.
	onListen func(addr string)
	// startFn builds and starts the pipeline; tests replace it.
	startFn func(ctx context.Context, reporter *reporting.Reporter) (backend, string, error)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{out: os.Stdout, lookupEnv: os.LookupEnv})
}

func newRootCmd(app *appState) *cobra.Command {
	if app.startFn == nil {
		app.startFn = app.startPipeline
	}

	cmd := &cobra.Command{
		Use:           "voxserve",
		Short:         "Serve speech-to-text transcription over HTTP with a bundled whisper engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.loadConfig(cmd); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Verbose: app.cfg.Log.Verbose,
				JSON:    app.cfg.Log.JSON,
				Output:  app.logOutput,
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runServe(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.SetFlagErrorFunc(flagUsageError)

	bindConfigFlag(cmd, app)
	bindLoggingFlags(cmd, app)
	bindListenFlag(cmd, app)

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindConfigFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.configPath, "config", app.configPath, "Path to a YAML config file")
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.Flags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindListenFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.listen, "listen", app.listen, "HTTP listen address, e.g. 127.0.0.1:8000")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Model name or model file path")
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
}

// loadConfig layers defaults, the config file, VOXSERVE_* variables and
// explicitly set flags, in increasing precedence.
func (a *appState) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	lookup := a.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = a.listen
	}
	if flags.Changed("verbose") {
		cfg.Log.Verbose = a.verbose
	}
	if flags.Changed("json") {
		cfg.Log.JSON = a.jsonLogs
	}
	if flags.Changed("model") {
		cfg.Model = a.model
	}
	if flags.Changed("model-dir") {
		cfg.ModelDir = a.modelDir
	}
	cfg.Language = sanitizeLanguage(cfg.Language)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
