package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rescale/filequery/internal/config"
)

// runCLI executes the command tree with an isolated config directory and
// returns everything written to stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("FILEQUERY_API_KEY", "")

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))

	hasConfig := false
	for _, a := range args {
		if a == "--config" || a == "-c" {
			hasConfig = true
		}
	}
	if !hasConfig {
		args = append([]string{"--config", filepath.Join(dir, "config.csv")}, args...)
	}
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommandStructure(t *testing.T) {
	cmd := newConfigCmd()
	want := map[string]bool{"init": false, "show": false, "set": false, "test": false, "path": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
		if sub.Short == "" {
			t.Errorf("%s: Short description is empty", sub.Name())
		}
		if sub.RunE == nil {
			t.Errorf("%s: RunE function is nil", sub.Name())
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("config %s not registered", name)
		}
	}
}

func TestConfigInitFlags(t *testing.T) {
	cmd := newConfigInitCmd()
	flag := cmd.Flags().Lookup("force")
	if flag == nil {
		t.Fatal("--force flag not found")
	}
	if flag.Shorthand != "f" {
		t.Errorf("Expected shorthand 'f', got '%s'", flag.Shorthand)
	}
}

func TestConfigShowDefaults(t *testing.T) {
	out, err := runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"backend:", "memory", "scope:", "root", "(file does not exist - using defaults)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	out, err := runCLI(t, "", "--api-key", "supersecret", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "supersecret") {
		t.Error("API key printed in clear text")
	}
	if !strings.Contains(out, "<set (11 chars)>") {
		t.Errorf("masked key missing:\n%s", out)
	}
}

func TestConfigInitAndSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.csv")
	input := strings.Join([]string{
		"remote",                    // backend
		"",                          // scope
		"https://api.filequery.dev", // api base url
		"token-123",                 // api key
		"n",                         // proxy
	}, "\n") + "\n"

	out, err := runCLI(t, input, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, "Configuration saved to: "+path) {
		t.Errorf("unexpected output:\n%s", out)
	}

	cfg, err := config.LoadConfigCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "remote" || cfg.APIBaseURL != "https://api.filequery.dev" || cfg.Scope != "root" {
		t.Errorf("saved config = %+v", cfg)
	}
	if cfg.APIKey != "" {
		t.Error("API key written to config file")
	}
	data, err := os.ReadFile(config.GetDefaultTokenPath())
	if err != nil || strings.TrimSpace(string(data)) != "token-123" {
		t.Errorf("token file = %q, %v", data, err)
	}

	out, err = runCLI(t, "", "--config", path, "config", "init")
	if err != nil || !strings.Contains(out, "already exists") {
		t.Errorf("second init = %q, %v", out, err)
	}

	if _, err := runCLI(t, "", "--config", path, "config", "set", "scope", "projects"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	cfg, _ = config.LoadConfigCSV(path)
	if cfg.Scope != "projects" {
		t.Errorf("scope = %q, want projects", cfg.Scope)
	}

	if _, err := runCLI(t, "", "--config", path, "config", "set", "api_key", "x"); err == nil {
		t.Error("expected error when setting a credential")
	}
	if _, err := runCLI(t, "", "--config", path, "config", "set", "colour", "blue"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigTestMemoryBackend(t *testing.T) {
	out, err := runCLI(t, "", "config", "test")
	if err != nil {
		t.Fatalf("config test error = %v", err)
	}
	if !strings.Contains(out, "Connection SUCCESSFUL") || !strings.Contains(out, "returned 3 files") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.csv")
	out, err := runCLI(t, "", "--config", path, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, path+"\n") {
		t.Errorf("output = %q", out)
	}
}
