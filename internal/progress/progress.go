// Package progress reports fetch activity to the user. In the CLI a spinner
// runs while a query executes; Watch drives any Reporter from the fetch
// events on the event bus.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/fetch"
)

// Reporter is notified about the lifecycle of the latest fetch.
type Reporter interface {
	Start(description string)
	Finish(count int)
	Error(message string)
}

// CLIProgress shows a spinner on a terminal while a fetch is running.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a reporter writing to out, os.Stderr when nil.
func NewCLIProgress(out io.Writer) *CLIProgress {
	if out == nil {
		out = os.Stderr
	}
	return &CLIProgress{out: out}
}

// Start begins a spinner described by description.
func (p *CLIProgress) Start(description string) {
	p.stop()
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(constants.SpinnerRefreshInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Finish stops the spinner and prints the result count.
func (p *CLIProgress) Finish(count int) {
	p.stop()
	fmt.Fprintf(p.out, "%d files\n", count)
}

// Error stops the spinner and prints message.
func (p *CLIProgress) Error(message string) {
	p.stop()
	fmt.Fprintf(p.out, "Error: %s\n", message)
}

func (p *CLIProgress) stop() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// Watch subscribes to fetch events on bus and forwards them to r on a new
// goroutine until ctx is done or the bus is closed. The subscription exists
// when Watch returns; the returned channel is closed once forwarding stopped.
// Superseded fetches report Start only.
func Watch(ctx context.Context, bus *events.EventBus, r Reporter) <-chan struct{} {
	ch := bus.Subscribe(
		events.EventFetchStarted,
		events.EventResultsChanged,
		events.EventFetchFailed,
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer bus.Unsubscribe(ch)
		Forward(ctx, ch, r)
	}()
	return done
}

// Forward drains fetch events from ch into r until ctx is done or ch closes.
func Forward(ctx context.Context, ch <-chan events.Event, r Reporter) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case *fetch.FetchStartedEvent:
				r.Start(fmt.Sprintf("Retrieving %q", e.Label))
			case *fetch.ResultsChangedEvent:
				r.Finish(e.Count)
			case *fetch.FetchFailedEvent:
				r.Error(e.Message)
			}
		}
	}
}
