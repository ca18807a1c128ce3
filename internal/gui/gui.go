// Package gui provides the graphical user interface for filequery.
package gui

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"

	"github.com/rescale/filequery/internal/config"
	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/services"
)

var (
	// guiLogger is the package-level logger for GUI mode
	guiLogger *logging.Logger
)

// LaunchGUI opens the query window and blocks until it is closed.
func LaunchGUI(configFile string) error {
	guiLogger = logging.NewLogger("gui", nil)

	// In GUI mode, default to WarnLevel for a cleaner console.
	// Set FILEQUERY_DEBUG=1 to see debug/info messages.
	if os.Getenv(constants.EnvPrefix+"DEBUG") != "" {
		logging.SetGlobalLevel(zerolog.DebugLevel)
		guiLogger.Info().Msg("Debug logging enabled")
	} else {
		logging.SetGlobalLevel(zerolog.WarnLevel)
	}

	if configFile == "" {
		configFile = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadEffective(configFile, config.GetDefaultTokenPath())
	if err != nil {
		guiLogger.Warn().Err(err).Str("path", configFile).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()

	svc, err := services.NewQueryService(ctx, cfg, bus, logging.NewLogger("query-service", bus))
	if err != nil {
		return fmt.Errorf("failed to start query service: %w", err)
	}
	defer svc.Close()

	myApp := app.NewWithID(constants.AppID)
	myApp.Settings().SetTheme(&filequeryTheme{})

	mainWindow := myApp.NewWindow(fmt.Sprintf("filequery - %s", cfg.Backend))
	mainWindow.SetMaster()

	view := NewQueryView(svc.Controller(), guiLogger.Named("query-view"))
	go view.Run(ctx, bus)

	mainWindow.SetContent(view.Build())
	mainWindow.Resize(fyne.NewSize(1000, 600))
	mainWindow.CenterOnScreen()
	mainWindow.SetOnClosed(cancel)

	mainWindow.ShowAndRun()
	return nil
}

// hasDisplay reports whether a GUI can be opened.
func hasDisplay() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
