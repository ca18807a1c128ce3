package gui

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// StatusLevel selects the icon shown next to the status message.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusWarning
	StatusError
	StatusProgress
)

// StatusBar shows the fetch state below the result list. Notify displays a
// transient message that reverts to the previous one.
type StatusBar struct {
	widget.BaseWidget

	mu      sync.Mutex
	level   StatusLevel
	message string
	seq     uint64

	icon    *widget.Icon
	label   *widget.Label
	spinner *widget.Activity
}

// NewStatusBar creates a status bar showing "Ready".
func NewStatusBar() *StatusBar {
	sb := &StatusBar{
		level:   StatusInfo,
		message: "Ready",
	}
	sb.label = widget.NewLabel(sb.message)
	sb.label.TextStyle = fyne.TextStyle{Italic: true}
	sb.icon = widget.NewIcon(theme.InfoIcon())
	sb.spinner = widget.NewActivity()
	sb.spinner.Hide()
	sb.ExtendBaseWidget(sb)
	return sb
}

// SetStatus replaces the message and level.
func (sb *StatusBar) SetStatus(message string, level StatusLevel) {
	sb.mu.Lock()
	sb.seq++
	sb.level = level
	sb.message = message
	sb.mu.Unlock()

	sb.render(message, level)
}

// Notify shows message as a warning for d, then restores the message that
// was shown before unless the status changed in between.
func (sb *StatusBar) Notify(message string, d time.Duration) {
	sb.mu.Lock()
	sb.seq++
	seq := sb.seq
	prevMessage, prevLevel := sb.message, sb.level
	sb.mu.Unlock()

	sb.render(message, StatusWarning)

	time.AfterFunc(d, func() {
		sb.mu.Lock()
		stale := sb.seq != seq
		sb.mu.Unlock()
		if !stale {
			sb.render(prevMessage, prevLevel)
		}
	})
}

func (sb *StatusBar) render(message string, level StatusLevel) {
	fyne.Do(func() {
		sb.label.SetText(message)
		sb.spinner.Stop()
		sb.spinner.Hide()
		sb.icon.Show()

		switch level {
		case StatusInfo:
			sb.icon.SetResource(theme.InfoIcon())
		case StatusSuccess:
			sb.icon.SetResource(theme.ConfirmIcon())
		case StatusWarning:
			sb.icon.SetResource(theme.WarningIcon())
		case StatusError:
			sb.icon.SetResource(theme.ErrorIcon())
		case StatusProgress:
			sb.icon.Hide()
			sb.spinner.Show()
			sb.spinner.Start()
		}
	})
}

// Message returns the persistent status message.
func (sb *StatusBar) Message() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.message
}

// Level returns the persistent status level.
func (sb *StatusBar) Level() StatusLevel {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.level
}

// CreateRenderer implements fyne.Widget
func (sb *StatusBar) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewHBox(sb.icon, sb.spinner, sb.label))
}
