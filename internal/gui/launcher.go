package gui

import (
	"errors"
)

// Run launches the GUI mode.
func Run(args []string) error {
	if !hasDisplay() {
		return errors.New("GUI mode requires a display. No display detected.\n" +
			"DISPLAY and WAYLAND_DISPLAY are not set.\n" +
			"Use 'filequery' without --gui for CLI mode")
	}

	configFile := ""
	for i, arg := range args {
		if (arg == "--config" || arg == "-c") && i+1 < len(args) {
			configFile = args[i+1]
			break
		}
	}

	return LaunchGUI(configFile)
}
