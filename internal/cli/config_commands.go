package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/filequery/internal/config"
	"github.com/rescale/filequery/internal/fetch"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage filequery configuration",
		Long: `Configuration management commands for filequery.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Change one configuration key
  test  - Run the first catalog query against the configured store
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for filequery.

Credentials are stored apart from the configuration file: the API key goes
to a token file next to it, object store keys must come from the
environment (FILEQUERY_ACCESS_KEY, FILEQUERY_SECRET_KEY).

Use --force to overwrite existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, token, err := promptConfig(cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			check := *cfg
			check.APIKey = token
			if err := check.Validate(); err != nil {
				GetLogger().Warn().Err(err).Msg("Configuration is incomplete")
			}

			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)

			if token != "" {
				tokenPath := tokenFile
				if tokenPath == "" {
					tokenPath = config.GetDefaultTokenPath()
				}
				if err := config.WriteTokenFile(tokenPath, token); err != nil {
					return err
				}
				fmt.Fprintf(out, "API token saved to: %s\n", tokenPath)
			}

			fmt.Fprintln(out, "Test your configuration with: filequery config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for the settings of one backend. It returns the API key
// separately so it is never written to the configuration file.
func promptConfig(in io.Reader, out io.Writer) (*config.Config, string, error) {
	reader := bufio.NewReader(in)
	ask := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		input, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return def, nil
		}
		return input, nil
	}

	fmt.Fprintln(out, "filequery Configuration Setup")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintln(out)

	cfg := config.Default()
	var token string
	var err error

	set := func(key, label string) error {
		value, err := ask(label, cfg.Get(key))
		if err != nil {
			return err
		}
		return cfg.Set(key, value)
	}

	if err := set("backend", "Backend (memory, remote, s3, azure, minio)"); err != nil {
		return nil, "", err
	}
	if err := set("scope", "Scope folder"); err != nil {
		return nil, "", err
	}

	switch cfg.Backend {
	case config.BackendMemory:
		err = set("records_file", "Records YAML file (empty for the built-in sample)")
	case config.BackendRemote:
		if err = set("api_base_url", "API base URL"); err == nil {
			token, err = ask("API key", "")
		}
	case config.BackendS3:
		for _, step := range [][2]string{{"bucket", "Bucket"}, {"prefix", "Key prefix"}, {"region", "Region"}, {"endpoint", "Endpoint (empty for AWS)"}} {
			if err = set(step[0], step[1]); err != nil {
				break
			}
		}
	case config.BackendAzure:
		for _, step := range [][2]string{{"azure_service_url", "Service URL"}, {"container", "Container"}, {"prefix", "Blob prefix"}} {
			if err = set(step[0], step[1]); err != nil {
				break
			}
		}
	case config.BackendMinio:
		for _, step := range [][2]string{{"endpoint", "Endpoint (host:port)"}, {"bucket", "Bucket"}, {"prefix", "Key prefix"}, {"use_ssl", "Use TLS"}} {
			if err = set(step[0], step[1]); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, "", err
	}

	if cfg.Backend != config.BackendMemory {
		proxy, err := ask("Configure proxy? [y/N]", "")
		if err != nil {
			return nil, "", err
		}
		if p := strings.ToLower(proxy); p == "y" || p == "yes" {
			for _, step := range [][2]string{{"proxy_mode", "Proxy mode (no-proxy, system, basic, ntlm)"}, {"proxy_host", "Proxy host"}, {"proxy_port", "Proxy port"}} {
				if err := set(step[0], step[1]); err != nil {
					return nil, "", err
				}
			}
		}
	}

	return cfg, token, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file
  2. Environment variables (FILEQUERY_<KEY>)
  3. Command-line flags

Priority: flags > environment > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printConfig(out, cfg)

			path := configPath()
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}

	return cmd
}

// printConfig writes every non-empty key. Credentials are never shown.
func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	for _, key := range config.Keys() {
		value := cfg.Get(key)
		if value == "" {
			continue
		}
		if config.IsSecret(key) {
			value = fmt.Sprintf("<set (%d chars)>", len(value))
		}
		fmt.Fprintf(w, "  %-18s %s\n", key+":", value)
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration key",
		Long: `Change one key in the configuration file.

Credential keys (api_key, secret_key, proxy_password) are not stored in the
configuration file; use the environment or 'config init' instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if config.IsSecret(key) {
				return fmt.Errorf("%s is a credential and is not stored in the configuration file", key)
			}

			path := configPath()
			cfg, err := config.LoadConfigCSV(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			known := false
			for _, k := range config.Keys() {
				if k == key {
					known = true
					break
				}
			}
			if !known {
				return fmt.Errorf("unknown configuration key: %s", key)
			}
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, cfg.Get(key))
			return nil
		},
	}

	return cmd
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the configured file store",
		Long: `Run the first catalog query against the configured file store.

Use this to verify credentials and network connectivity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			ctx, cancel := context.WithTimeout(GetContext(), timeout)
			defer cancel()

			svc, bus, err := newService(ctx)
			if err != nil {
				return err
			}
			defer bus.Close()
			defer svc.Close()

			fmt.Fprintf(out, "Backend: %s\n", svc.Config().Backend)
			fmt.Fprintln(out, "Testing connection...")

			f, err := svc.Controller().Select(0)
			if err != nil {
				return err
			}
			outcome, err := f.Wait(ctx)
			if outcome != fetch.OutcomeApplied {
				GetLogger().Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "Connection FAILED")
				if err != nil {
					fmt.Fprintf(out, "  Error: %v\n", err)
				}
				return fmt.Errorf("connection test failed")
			}

			fmt.Fprintln(out, "Connection SUCCESSFUL")
			fmt.Fprintf(out, "  %q returned %d files\n", f.Label(), svc.Controller().Projection().Count())
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time allowed for the test query")

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			fmt.Fprintln(out, path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "(file does not exist)")
			}
			return nil
		},
	}

	return cmd
}
