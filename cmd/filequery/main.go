// filequery runs saved file queries against a file-metadata store.
//
// Mode detection:
// - No args + display available → GUI mode
// - No args + no display → CLI help
// - --gui → GUI mode
// - --cli → CLI mode (force)
// - CLI subcommands/flags → CLI mode
package main

import (
	"fmt"
	"os"
	"runtime"
	"slices"

	"github.com/rescale/filequery/internal/cli"
	"github.com/rescale/filequery/internal/gui"
)

func main() {
	args := os.Args[1:]

	if isCLIMode(args, hasDisplay()) {
		args = slices.DeleteFunc(args, func(a string) bool { return a == "--cli" })
		os.Args = append(os.Args[:1], args...)
		if err := cli.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := gui.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// isCLIMode decides between CLI and GUI from the arguments.
//
// CLI mode when:
// - --cli flag is present (force CLI mode)
// - any argument other than --gui and --config is present
// - no arguments and no display
//
// GUI mode when:
// - --gui flag is present (force GUI mode)
// - no arguments and a display is available
func isCLIMode(args []string, display bool) bool {
	if slices.Contains(args, "--cli") {
		return true
	}
	if slices.Contains(args, "--gui") {
		return false
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-c":
			i++ // skip the path
		default:
			return true
		}
	}
	return !display
}

func hasDisplay() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
