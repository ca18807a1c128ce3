// Package cli provides the command-line interface for filequery.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rescale/filequery/internal/config"
	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/services"
	"github.com/rescale/filequery/internal/version"
)

var (
	// Global flags
	cfgFile     string
	backendFlag string
	scopeFlag   string
	catalogFlag string
	recordsFlag string
	apiKey      string
	tokenFile   string // Path to file containing API key
	apiBaseURL  string
	verbose     bool
	debug       bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command for CLI mode.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "filequery - run saved queries against a file-metadata store",
		Long: `filequery ` + version.Version + ` - Built: ` + version.BuildTime + `
Runs saved file queries against a remote file-metadata store and shows
the matching files.

CLI Mode (default):
  queries  - list the query catalog
  run      - execute one query and print the results
  browse   - select queries interactively

GUI Mode (--gui flag):
  Query list with live result view.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "File store backend: memory, remote, s3, azure, minio (overrides config)")
	rootCmd.PersistentFlags().StringVar(&scopeFlag, "scope", "", "Folder whose files are queried (overrides config)")
	rootCmd.PersistentFlags().StringVar(&catalogFlag, "catalog", "", "YAML query catalog (overrides config)")
	rootCmd.PersistentFlags().StringVar(&recordsFlag, "records", "", "YAML records file for the memory backend (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "File API key (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing API key")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "File API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate a shell completion script",
		Args:  cobra.ExactArgs(1),
		ValidArgs: []string{
			"bash", "zsh", "fish", "powershell",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(out)
			}
			return fmt.Errorf("unsupported shell: %s", args[0])
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newQueriesCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// configPath returns --config or the default configuration path.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetDefaultConfigPath()
}

// loadConfig merges the configuration file, the environment and flags.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	tokenPath := tokenFile
	if tokenPath == "" {
		tokenPath = config.GetDefaultTokenPath()
	}
	cfg, err := config.LoadEffective(configPath(), tokenPath)
	if err != nil {
		return nil, err
	}

	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if scopeFlag != "" {
		cfg.Scope = scopeFlag
	}
	if catalogFlag != "" {
		cfg.CatalogFile = catalogFlag
	}
	if recordsFlag != "" {
		cfg.RecordsFile = recordsFlag
	}
	if apiBaseURL != "" {
		if err := cfg.Set("api_base_url", apiBaseURL); err != nil {
			return nil, err
		}
	}

	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	if !verbose && !debug {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

// newService builds a query service publishing on a fresh event bus. The
// caller closes both.
func newService(ctx context.Context) (*services.QueryService, *events.EventBus, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	svc, err := services.NewQueryService(ctx, cfg, bus, GetLogger().Named("query-service"))
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return svc, bus, nil
}
