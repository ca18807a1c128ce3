// Package fetch runs catalog queries against a remote file-metadata store and
// holds the result set of the latest fetch. Starting a fetch supersedes every
// fetch started before it: a superseded completion never touches the result
// set, regardless of the order in which completions arrive.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/filequery/internal/catalog"
	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
)

// Executor evaluates a query against a remote store, restricted to scope.
type Executor interface {
	ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error)

func (f ExecutorFunc) ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
	return f(ctx, scope, q)
}

// State is the controller's fetch state.
type State int

const (
	StateIdle State = iota
	StateFetching
)

func (s State) String() string {
	if s == StateFetching {
		return "fetching"
	}
	return "idle"
}

// Option configures a Controller.
type Option func(*Controller)

// WithScope sets the folder scope passed to the executor.
func WithScope(scope string) Option {
	return func(c *Controller) {
		if scope != "" {
			c.scope = scope
		}
	}
}

// WithEventBus publishes fetch lifecycle events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(c *Controller) { c.eventBus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFetchTimeout bounds each executor call. Zero disables the timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// Controller owns the selection and the current result set.
type Controller struct {
	catalog  *catalog.Catalog
	executor Executor
	scope    string
	timeout  time.Duration
	eventBus *events.EventBus
	logger   *logging.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	// pubMu orders events like the state changes they announce. It is taken
	// before mu and held until the event is on the bus.
	pubMu sync.Mutex

	mu         sync.Mutex
	selected   int
	generation uint64
	state      State
	cancel     context.CancelFunc
	results    *ResultSet
	closed     bool
}

// NewController creates a controller with entry 0 selected and no results.
func NewController(cat *catalog.Catalog, executor Executor, opts ...Option) (*Controller, error) {
	if cat == nil || cat.Count() == 0 {
		return nil, errors.New("catalog is required and must not be empty")
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		catalog:  cat,
		executor: executor,
		scope:    constants.DefaultScope,
		timeout:  constants.DefaultFetchTimeout,
		baseCtx:  ctx,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger("fetch", c.eventBus)
	}
	return c, nil
}

// Catalog returns the catalog the controller selects from.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.catalog
}

// Scope returns the folder scope passed to the executor.
func (c *Controller) Scope() string {
	return c.scope
}

// Select records i as the selected catalog entry and starts a fetch for it.
// Selecting the already selected index fetches again.
func (c *Controller) Select(i int) (*Fetch, error) {
	if _, err := c.catalog.Entry(i); err != nil {
		return nil, err
	}
	return c.start(&i)
}

// Refresh re-runs the selected query, entry 0 until Select is called. After
// Close it returns an already failed handle wrapping ErrClosed.
func (c *Controller) Refresh() *Fetch {
	f, err := c.start(nil)
	if err != nil {
		return failedFetch(err)
	}
	return f
}

func (c *Controller) start(index *int) (*Fetch, error) {
	c.pubMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.pubMu.Unlock()
		return nil, ErrClosed
	}
	if index != nil {
		c.selected = *index
	}
	entry, err := c.catalog.Entry(c.selected)
	if err != nil {
		c.mu.Unlock()
		c.pubMu.Unlock()
		return nil, fmt.Errorf("selected query: %w", err)
	}

	c.supersedeLocked()
	c.generation++
	f := newFetch(uuid.NewString(), c.generation, c.selected, entry.Label)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.baseCtx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.baseCtx)
	}
	c.cancel = cancel
	c.state = StateFetching
	c.wg.Add(1)
	c.mu.Unlock()

	c.publish(&FetchStartedEvent{
		BaseEvent:  events.NewBaseEvent(events.EventFetchStarted),
		FetchID:    f.id,
		Generation: f.generation,
		Index:      f.index,
		Label:      f.label,
		Query:      entry.Query.String(),
	})
	c.pubMu.Unlock()

	c.logger.Debug().
		Str("fetch_id", f.id).
		Uint64("generation", f.generation).
		Str("query", entry.Query.String()).
		Stringers("fields", fieldStringers(entry.Query.Fields())).
		Msgf("Fetching %q", entry.Label)

	go c.run(ctx, cancel, f, entry.Query)
	return f, nil
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, f *Fetch, q query.Query) {
	defer c.wg.Done()
	defer cancel()

	records, err := c.executor.ExecuteQuery(ctx, c.scope, q)
	c.complete(f, q, records, err)
}

func (c *Controller) complete(f *Fetch, q query.Query, records []models.FileMetadata, err error) {
	c.pubMu.Lock()
	c.mu.Lock()
	if c.closed || f.generation != c.generation {
		c.mu.Unlock()
		c.pubMu.Unlock()
		c.logger.Debug().
			Str("fetch_id", f.id).
			Uint64("generation", f.generation).
			Msg("Dropping superseded fetch result")
		f.resolve(OutcomeSuperseded, nil)
		return
	}

	c.state = StateIdle
	c.cancel = nil

	if err != nil {
		c.mu.Unlock()
		ferr := &FetchFailedError{Index: f.index, Label: f.label, Reason: err}
		c.publish(&FetchFailedEvent{
			BaseEvent:  events.NewBaseEvent(events.EventFetchFailed),
			FetchID:    f.id,
			Generation: f.generation,
			Index:      f.index,
			Label:      f.label,
			Err:        ferr,
			Message:    ferr.UserMessage(),
		})
		c.pubMu.Unlock()

		c.logger.Warn().
			Str("fetch_id", f.id).
			Err(err).
			Msgf("Failed to retrieve files for %q", f.label)
		f.resolve(OutcomeFailed, ferr)
		return
	}

	rs := newResultSet(f.generation, f.index, f.label, q, records)
	c.results = rs
	c.mu.Unlock()

	c.publish(&ResultsChangedEvent{
		BaseEvent:  events.NewBaseEvent(events.EventResultsChanged),
		FetchID:    f.id,
		Generation: f.generation,
		Index:      f.index,
		Label:      f.label,
		Count:      rs.Count(),
	})
	c.pubMu.Unlock()

	c.logger.Info().
		Str("fetch_id", f.id).
		Int("count", rs.Count()).
		Msgf("Retrieved files for %q", f.label)
	f.resolve(OutcomeApplied, nil)
}

// supersedeLocked cancels the in-flight fetch, if any. c.mu must be held.
func (c *Controller) supersedeLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Clear supersedes any in-flight fetch and drops the result set.
func (c *Controller) Clear() {
	c.pubMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.pubMu.Unlock()
		return
	}
	c.supersedeLocked()
	c.generation++
	gen := c.generation
	c.state = StateIdle
	c.results = nil
	c.mu.Unlock()

	c.publish(&ResultsClearedEvent{
		BaseEvent:  events.NewBaseEvent(events.EventResultsCleared),
		Generation: gen,
	})
	c.pubMu.Unlock()

	c.logger.Debug().Uint64("generation", gen).Msg("Cleared results")
}

// Close cancels in-flight work and waits for fetch goroutines to exit.
// Handles of cancelled fetches resolve as superseded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.supersedeLocked()
	c.state = StateIdle
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// Selected returns the selected catalog index.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// State returns the current fetch state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Results returns the current snapshot, nil when absent.
func (c *Controller) Results() *ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Projection returns a read-only list view over the current results.
func (c *Controller) Projection() *Projection {
	return &Projection{source: c}
}

func fieldStringers(fields []query.Field) []fmt.Stringer {
	out := make([]fmt.Stringer, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

func (c *Controller) publish(event events.Event) {
	if c.eventBus != nil {
		c.eventBus.Publish(event)
	}
}
