package fetch

import (
	"context"
)

// Outcome is how a fetch ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeApplied
	OutcomeFailed
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Fetch is the completion handle for one query execution.
type Fetch struct {
	id         string
	generation uint64
	index      int
	label      string

	done    chan struct{}
	outcome Outcome
	err     error
}

func newFetch(id string, generation uint64, index int, label string) *Fetch {
	return &Fetch{
		id:         id,
		generation: generation,
		index:      index,
		label:      label,
		done:       make(chan struct{}),
	}
}

func failedFetch(err error) *Fetch {
	f := newFetch("", 0, -1, "")
	f.resolve(OutcomeFailed, err)
	return f
}

// resolve is called exactly once per fetch.
func (f *Fetch) resolve(outcome Outcome, err error) {
	f.outcome = outcome
	f.err = err
	close(f.done)
}

// ID is the correlation ID used in logs and events.
func (f *Fetch) ID() string { return f.id }

// Generation orders fetches; only the highest started generation is applied.
func (f *Fetch) Generation() uint64 { return f.generation }

// Index is the catalog index being fetched.
func (f *Fetch) Index() int { return f.index }

// Label is the catalog label being fetched.
func (f *Fetch) Label() string { return f.label }

// Done is closed once the fetch has completed.
func (f *Fetch) Done() <-chan struct{} { return f.done }

// Outcome returns OutcomePending until the fetch completes.
func (f *Fetch) Outcome() Outcome {
	select {
	case <-f.done:
		return f.outcome
	default:
		return OutcomePending
	}
}

// Err returns the failure of a completed fetch, nil otherwise.
func (f *Fetch) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the fetch completes or ctx is done. The returned error is
// the fetch failure, or ctx.Err() if waiting was abandoned.
func (f *Fetch) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, f.err
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}
