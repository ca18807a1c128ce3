package gui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/fetch"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
)

// failureNoticeDuration is how long a failed fetch notice stays visible.
const failureNoticeDuration = 4 * time.Second

// QueryView lists the catalog on the left and the current results on the
// right. The result list is only touched on the fyne thread. Events only
// trigger a re-read of the controller's snapshot.
type QueryView struct {
	controller *fetch.Controller
	logger     *logging.Logger

	shown *fetch.ResultSet

	queries *widget.List
	results *widget.List
	header  *widget.Label
	status  *StatusBar
}

// NewQueryView creates the view over controller.
func NewQueryView(controller *fetch.Controller, logger *logging.Logger) *QueryView {
	if logger == nil {
		logger = logging.NewLogger("query-view", nil)
	}
	v := &QueryView{
		controller: controller,
		logger:     logger,
		shown:      controller.Projection().Snapshot(),
		header:     sectionTitle("No query selected"),
		status:     NewStatusBar(),
	}

	cat := controller.Catalog()
	v.queries = widget.NewList(
		cat.Count,
		func() fyne.CanvasObject {
			return widget.NewLabel("query label")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			entry, err := cat.Entry(id)
			if err != nil {
				return
			}
			obj.(*widget.Label).SetText(entry.Label)
		},
	)
	v.queries.OnSelected = v.selectQuery

	v.results = widget.NewList(
		func() int {
			return v.shown.Count()
		},
		func() fyne.CanvasObject {
			title := widget.NewLabel("file title")
			title.Truncation = fyne.TextTruncateEllipsis
			modified := widget.NewLabel(constants.ModifiedDateLayout)
			return container.NewBorder(nil, nil, widget.NewIcon(theme.FileIcon()), modified, title)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			item, err := v.shown.ItemAt(id)
			if err != nil {
				return
			}
			row := obj.(*fyne.Container)
			title, modified, icon := rowParts(row)
			title.SetText(item.Title)
			modified.SetText(item.ModifiedDate.Format(constants.ModifiedDateLayout))
			icon.SetResource(iconFor(item))
		},
	)

	return v
}

// rowParts returns the widgets of a result row built by the CreateItem
// function above. Border places the center object first.
func rowParts(row *fyne.Container) (title, modified *widget.Label, icon *widget.Icon) {
	for _, obj := range row.Objects {
		switch w := obj.(type) {
		case *widget.Icon:
			icon = w
		case *widget.Label:
			if title == nil {
				title = w
			} else {
				modified = w
			}
		}
	}
	return title, modified, icon
}

func iconFor(item models.FileMetadata) fyne.Resource {
	switch {
	case item.Starred:
		return theme.ConfirmIcon()
	case item.SharedWithMe:
		return theme.AccountIcon()
	default:
		return theme.FileIcon()
	}
}

// Build creates the layout.
func (v *QueryView) Build() fyne.CanvasObject {
	left := container.NewBorder(sectionTitle("Queries"), nil, nil, nil, v.queries)

	refresh := newPrimaryButtonWithIcon("Refresh", theme.ViewRefreshIcon(), v.refresh)
	clearBtn := widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), v.controller.Clear)
	top := container.NewBorder(nil, nil, nil, container.NewHBox(refresh, clearBtn), v.header)
	right := container.NewBorder(top, v.status, nil, nil, v.results)

	split := container.NewHSplit(left, right)
	split.Offset = 0.3
	return split
}

func (v *QueryView) selectQuery(id widget.ListItemID) {
	if _, err := v.controller.Select(id); err != nil {
		v.logger.Warn().Err(err).Int("index", id).Msg("Cannot select query")
		v.status.SetStatus(err.Error(), StatusError)
	}
}

func (v *QueryView) refresh() {
	if f := v.controller.Refresh(); f.Outcome() == fetch.OutcomeFailed {
		v.status.Notify(f.Err().Error(), failureNoticeDuration)
	}
}

// Run applies fetch events from bus until ctx is done or the bus closes.
func (v *QueryView) Run(ctx context.Context, bus *events.EventBus) {
	ch := bus.Subscribe(
		events.EventFetchStarted,
		events.EventResultsChanged,
		events.EventResultsCleared,
		events.EventFetchFailed,
	)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			v.HandleEvent(ev)
		case <-ctx.Done():
			return
		}
	}
}

// showCurrent renders the controller's current snapshot. A late or dropped
// event therefore never leaves an older result set on screen.
func (v *QueryView) showCurrent() {
	rs := v.controller.Results()
	if rs == nil {
		v.status.SetStatus("Ready", StatusInfo)
	} else {
		v.status.SetStatus(fmt.Sprintf("%d files", rs.Count()), StatusSuccess)
	}

	fyne.Do(func() {
		if rs == v.shown {
			return
		}
		v.shown = rs
		if rs == nil {
			v.header.SetText("No query selected")
		} else {
			v.header.SetText(rs.Label())
			v.results.UnselectAll()
			v.results.ScrollToTop()
		}
		v.results.Refresh()
	})
}

// HandleEvent updates the view for one fetch event.
func (v *QueryView) HandleEvent(ev events.Event) {
	switch e := ev.(type) {
	case *fetch.FetchStartedEvent:
		v.status.SetStatus(fmt.Sprintf("Retrieving %q...", e.Label), StatusProgress)

	case *fetch.ResultsChangedEvent:
		v.showCurrent()

	case *fetch.ResultsClearedEvent:
		fyne.Do(v.queries.UnselectAll)
		v.showCurrent()

	case *fetch.FetchFailedEvent:
		// the previous results stay on screen
		if rs := v.controller.Results(); rs != nil {
			v.status.SetStatus(fmt.Sprintf("%d files", rs.Count()), StatusSuccess)
		} else {
			v.status.SetStatus("Ready", StatusInfo)
		}
		v.status.Notify(e.Message, failureNoticeDuration)
	}
}
