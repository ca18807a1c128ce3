package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rescale/filequery/internal/catalog"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
)

const testTimeout = 2 * time.Second

type result struct {
	records []models.FileMetadata
	err     error
}

type call struct {
	ctx     context.Context
	scope   string
	query   query.Query
	release chan result
}

// gatedExecutor blocks every call until the test releases it.
type gatedExecutor struct {
	calls    chan *call
	honorCtx bool
}

func newGatedExecutor(honorCtx bool) *gatedExecutor {
	return &gatedExecutor{calls: make(chan *call, 16), honorCtx: honorCtx}
}

func (g *gatedExecutor) ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
	c := &call{ctx: ctx, scope: scope, query: q, release: make(chan result, 1)}
	g.calls <- c
	if g.honorCtx {
		select {
		case r := <-c.release:
			return r.records, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r := <-c.release
	return r.records, r.err
}

func (g *gatedExecutor) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(testTimeout):
		t.Fatal("Timeout waiting for executor call")
		return nil
	}
}

func records(titles ...string) []models.FileMetadata {
	out := make([]models.FileMetadata, len(titles))
	for i, title := range titles {
		out[i] = models.FileMetadata{ID: title, Title: title, MimeType: "text/plain"}
	}
	return out
}

func newTestController(t *testing.T, exec Executor, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Nop())}, opts...)
	c, err := NewController(catalog.Default(), exec, opts...)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func wait(t *testing.T, f *Fetch) (Outcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	outcome, err := f.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Timeout waiting for fetch %d", f.Generation())
	}
	return outcome, err
}

func waitEvent(t *testing.T, ch <-chan events.Event, want events.EventType) events.Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case e := <-ch:
			if e.Type() == want {
				return e
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for %s event", want)
			return nil
		}
	}
}

func titles(rs *ResultSet) []string {
	var out []string
	for _, r := range rs.Records() {
		out = append(out, r.Title)
	}
	return out
}

func TestNewControllerValidation(t *testing.T) {
	exec := newGatedExecutor(false)
	if _, err := NewController(nil, exec); err == nil {
		t.Error("Expected error for nil catalog")
	}
	if _, err := NewController(catalog.New(), exec); err == nil {
		t.Error("Expected error for empty catalog")
	}
	if _, err := NewController(catalog.Default(), nil); err == nil {
		t.Error("Expected error for nil executor")
	}
}

func TestInitialState(t *testing.T) {
	c := newTestController(t, newGatedExecutor(false))

	if c.Selected() != 0 {
		t.Errorf("Selected() = %d, want 0", c.Selected())
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if c.Results() != nil {
		t.Error("Results() should be absent before any fetch")
	}
	if c.Projection().Count() != 0 {
		t.Errorf("Projection().Count() = %d, want 0", c.Projection().Count())
	}
}

func TestSelectAppliesResults(t *testing.T) {
	exec := newGatedExecutor(false)
	bus := events.NewEventBus(16)
	defer bus.Close()
	ch := bus.SubscribeAll()
	c := newTestController(t, exec, WithEventBus(bus), WithScope("folder-1"))

	f, err := c.Select(2)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	started := waitEvent(t, ch, events.EventFetchStarted).(*FetchStartedEvent)
	if started.Generation != f.Generation() || started.Query != "mimeType = 'text/plain'" {
		t.Errorf("unexpected started event %+v", started)
	}

	call := exec.next(t)
	if call.scope != "folder-1" {
		t.Errorf("scope = %q, want folder-1", call.scope)
	}
	if call.query.String() != "mimeType = 'text/plain'" {
		t.Errorf("query = %q", call.query.String())
	}
	if c.State() != StateFetching {
		t.Errorf("State() = %v, want fetching", c.State())
	}
	call.release <- result{records: records("a.txt", "b.txt")}

	outcome, err := wait(t, f)
	if outcome != OutcomeApplied || err != nil {
		t.Fatalf("Wait() = %v, %v; want applied", outcome, err)
	}

	changed := waitEvent(t, ch, events.EventResultsChanged).(*ResultsChangedEvent)
	if changed.Count != 2 || changed.Index != 2 || changed.Label != "Plain text files" {
		t.Errorf("unexpected changed event %+v", changed)
	}
	if changed.FetchID != f.ID() || f.ID() == "" {
		t.Errorf("FetchID = %q, want %q", changed.FetchID, f.ID())
	}

	rs := c.Results()
	if rs.Count() != 2 || rs.Generation() != f.Generation() || rs.Index() != 2 {
		t.Errorf("unexpected results count=%d gen=%d index=%d", rs.Count(), rs.Generation(), rs.Index())
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if c.Selected() != 2 {
		t.Errorf("Selected() = %d, want 2", c.Selected())
	}
}

func TestLaterCompletionOfEarlierFetchIsDropped(t *testing.T) {
	exec := newGatedExecutor(false)
	bus := events.NewEventBus(16)
	defer bus.Close()
	ch := bus.Subscribe(events.EventResultsChanged, events.EventFetchFailed)
	c := newTestController(t, exec, WithEventBus(bus))

	first, _ := c.Select(0)
	firstCall := exec.next(t)
	second, _ := c.Select(1)
	secondCall := exec.next(t)

	if second.Generation() <= first.Generation() {
		t.Fatalf("generations not increasing: %d then %d", first.Generation(), second.Generation())
	}

	secondCall.release <- result{records: records("shared.txt")}
	if outcome, _ := wait(t, second); outcome != OutcomeApplied {
		t.Fatalf("second outcome = %v, want applied", outcome)
	}
	waitEvent(t, ch, events.EventResultsChanged)

	firstCall.release <- result{records: records("mine-1.txt", "mine-2.txt")}
	if outcome, _ := wait(t, first); outcome != OutcomeSuperseded {
		t.Fatalf("first outcome = %v, want superseded", outcome)
	}

	got := titles(c.Results())
	if len(got) != 1 || got[0] != "shared.txt" {
		t.Errorf("results = %v, want [shared.txt]", got)
	}
	if c.Results().Index() != 1 {
		t.Errorf("results index = %d, want 1", c.Results().Index())
	}

	select {
	case e := <-ch:
		t.Errorf("superseded fetch emitted %s", e.Type())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEarlierFetchFinishingFirstIsDropped(t *testing.T) {
	exec := newGatedExecutor(false)
	c := newTestController(t, exec)

	first, _ := c.Select(0)
	firstCall := exec.next(t)
	second, _ := c.Select(1)
	secondCall := exec.next(t)

	firstCall.release <- result{records: records("mine.txt")}
	if outcome, _ := wait(t, first); outcome != OutcomeSuperseded {
		t.Fatalf("first outcome = %v, want superseded", outcome)
	}
	if c.Results() != nil {
		t.Error("superseded result was applied")
	}
	if c.State() != StateFetching {
		t.Errorf("State() = %v, want fetching", c.State())
	}

	secondCall.release <- result{records: records("shared.txt")}
	if outcome, _ := wait(t, second); outcome != OutcomeApplied {
		t.Fatalf("second outcome = %v, want applied", outcome)
	}
	if got := titles(c.Results()); len(got) != 1 || got[0] != "shared.txt" {
		t.Errorf("results = %v, want [shared.txt]", got)
	}
}

func TestSupersededFetchIsCancelled(t *testing.T) {
	exec := newGatedExecutor(true)
	c := newTestController(t, exec)

	first, _ := c.Select(0)
	firstCall := exec.next(t)
	c.Select(1)
	exec.next(t)

	select {
	case <-firstCall.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("superseded fetch context was not cancelled")
	}
	if outcome, _ := wait(t, first); outcome != OutcomeSuperseded {
		t.Errorf("first outcome = %v, want superseded", outcome)
	}
}

func TestFailurePreservesResults(t *testing.T) {
	exec := newGatedExecutor(false)
	bus := events.NewEventBus(16)
	defer bus.Close()
	ch := bus.Subscribe(events.EventFetchFailed)
	c := newTestController(t, exec, WithEventBus(bus))

	f, _ := c.Select(3)
	exec.next(t).release <- result{records: records("alpha", "beta")}
	wait(t, f)
	before := c.Results()

	remoteErr := errors.New("503 service unavailable")
	f, _ = c.Select(4)
	exec.next(t).release <- result{err: remoteErr}

	outcome, err := wait(t, f)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, remoteErr) {
		t.Errorf("err = %v, want FetchFailed wrapping remote error", err)
	}
	var ferr *FetchFailedError
	if !errors.As(f.Err(), &ferr) || ferr.Index != 4 {
		t.Errorf("Err() = %v, want *FetchFailedError for index 4", f.Err())
	}

	failed := waitEvent(t, ch, events.EventFetchFailed).(*FetchFailedEvent)
	if failed.Message != "Error while retrieving files" {
		t.Errorf("Message = %q", failed.Message)
	}

	if c.Results() != before {
		t.Error("failure replaced the result set")
	}
	if c.Selected() != 4 {
		t.Errorf("Selected() = %d, want 4", c.Selected())
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}

func TestSelectOutOfRange(t *testing.T) {
	exec := newGatedExecutor(false)
	c := newTestController(t, exec)

	for _, i := range []int{-1, 6, 100} {
		f, err := c.Select(i)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Select(%d) err = %v, want ErrIndexOutOfRange", i, err)
		}
		if f != nil {
			t.Errorf("Select(%d) returned a fetch", i)
		}
	}
	if c.Selected() != 0 || c.State() != StateIdle || c.Results() != nil {
		t.Error("out of range Select changed controller state")
	}
	select {
	case <-exec.calls:
		t.Error("out of range Select reached the executor")
	default:
	}
}

func TestRefreshBeforeSelectUsesFirstEntry(t *testing.T) {
	exec := newGatedExecutor(false)
	c := newTestController(t, exec)

	f := c.Refresh()
	call := exec.next(t)
	if got, want := call.query.String(), "not sharedWithMe"; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
	if f.Index() != 0 {
		t.Errorf("Index() = %d, want 0", f.Index())
	}
	call.release <- result{records: records("a.txt")}

	if outcome, err := wait(t, f); outcome != OutcomeApplied || err != nil {
		t.Fatalf("Wait() = %v, %v, want applied", outcome, err)
	}
	if c.Projection().Count() != 1 {
		t.Errorf("Count() = %d, want 1", c.Projection().Count())
	}
}

func TestReselectFetchesAgain(t *testing.T) {
	var calls atomic.Int32
	exec := ExecutorFunc(func(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
		n := calls.Add(1)
		return records(string(rune('a' + n))), nil
	})
	c := newTestController(t, exec)

	f, _ := c.Select(0)
	wait(t, f)
	f, _ = c.Select(0)
	wait(t, f)

	if calls.Load() != 2 {
		t.Errorf("executor called %d times, want 2", calls.Load())
	}
	if got := titles(c.Results()); len(got) != 1 || got[0] != "c" {
		t.Errorf("results = %v, want [c]", got)
	}

	f = c.Refresh()
	wait(t, f)
	if calls.Load() != 3 {
		t.Errorf("Refresh did not fetch again, calls = %d", calls.Load())
	}
}

func TestClearDropsResultsAndInFlight(t *testing.T) {
	exec := newGatedExecutor(false)
	bus := events.NewEventBus(16)
	defer bus.Close()
	ch := bus.Subscribe(events.EventResultsCleared, events.EventResultsChanged)
	c := newTestController(t, exec, WithEventBus(bus))

	f, _ := c.Select(2)
	exec.next(t).release <- result{records: records("a.txt")}
	wait(t, f)
	waitEvent(t, ch, events.EventResultsChanged)

	f, _ = c.Select(2)
	pending := exec.next(t)
	c.Clear()
	waitEvent(t, ch, events.EventResultsCleared)

	if c.Results() != nil || c.Projection().Count() != 0 {
		t.Error("Clear left results behind")
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}

	pending.release <- result{records: records("late.txt")}
	if outcome, _ := wait(t, f); outcome != OutcomeSuperseded {
		t.Errorf("outcome = %v, want superseded", outcome)
	}
	if c.Results() != nil {
		t.Error("fetch started before Clear was applied")
	}
}

func TestCloseCancelsInFlight(t *testing.T) {
	exec := newGatedExecutor(true)
	c, err := NewController(catalog.Default(), exec, WithLogger(logging.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	f, _ := c.Select(1)
	exec.next(t)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("Close did not return")
	}

	if outcome, _ := wait(t, f); outcome != OutcomeSuperseded {
		t.Errorf("outcome = %v, want superseded", outcome)
	}
	if !errors.Is(c.Refresh().Err(), ErrClosed) {
		t.Error("Refresh after Close should fail with ErrClosed")
	}
	if _, err := c.Select(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Select after Close err = %v, want ErrClosed", err)
	}
	c.Close()
}

func TestFetchTimeout(t *testing.T) {
	exec := newGatedExecutor(true)
	c := newTestController(t, exec, WithFetchTimeout(20*time.Millisecond))

	f, _ := c.Select(0)
	exec.next(t)

	outcome, err := wait(t, f)
	if outcome != OutcomeFailed || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, %v; want failed with deadline exceeded", outcome, err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	exec := newGatedExecutor(false)
	c := newTestController(t, exec)

	f, _ := c.Select(0)
	call := exec.next(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if outcome, err := f.Wait(ctx); outcome != OutcomePending || !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, %v; want pending, canceled", outcome, err)
	}
	if f.Outcome() != OutcomePending || f.Err() != nil {
		t.Error("fetch should still be pending")
	}
	call.release <- result{}
	wait(t, f)
}
