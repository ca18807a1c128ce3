package fetch

import (
	"github.com/rescale/filequery/internal/events"
)

// FetchStartedEvent is published when a query execution begins.
type FetchStartedEvent struct {
	events.BaseEvent
	FetchID    string
	Generation uint64
	Index      int
	Label      string
	Query      string
}

// ResultsChangedEvent is published after a fetch replaced the result set.
// Events can be dropped by a full subscriber, so presentation layers re-read
// Controller.Results instead of trusting the payload.
type ResultsChangedEvent struct {
	events.BaseEvent
	FetchID    string
	Generation uint64
	Index      int
	Label      string
	Count      int
}

// ResultsClearedEvent is published when the result set became absent.
type ResultsClearedEvent struct {
	events.BaseEvent
	Generation uint64
}

// FetchFailedEvent is published when the latest fetch failed. The displayed
// results are unchanged; Message is meant for a transient notice.
type FetchFailedEvent struct {
	events.BaseEvent
	FetchID    string
	Generation uint64
	Index      int
	Label      string
	Err        error
	Message    string
}
