package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/fetch"
)

// newBrowseCmd creates the 'browse' command.
func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Select catalog queries interactively",
		Long: `Show the query catalog and read commands from standard input:

  <index>  select and run a query
  r        refresh the selected query (the first one until a selection)
  c        clear the results
  l        list the catalog again
  q        quit

Selecting a query while another one is still running abandons the older
one; only the latest selection updates the result list. When input is not
a terminal the last selection is awaited before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, bus, err := newService(GetContext())
			if err != nil {
				return err
			}

			interactive := false
			if f, ok := cmd.InOrStdin().(*os.File); ok {
				interactive = term.IsTerminal(int(f.Fd()))
			}

			b := &browser{
				controller:  svc.Controller(),
				out:         &syncWriter{w: cmd.OutOrStdout()},
				interactive: interactive,
			}
			b.renderDone = make(chan struct{})
			ch := bus.Subscribe(
				events.EventFetchStarted,
				events.EventResultsChanged,
				events.EventResultsCleared,
				events.EventFetchFailed,
			)
			go b.render(ch)

			err = b.loop(cmd.InOrStdin())

			svc.Close()
			bus.Close()
			<-b.renderDone
			return err
		},
	}

	return cmd
}

// browser reads commands and renders fetch events.
type browser struct {
	controller  *fetch.Controller
	out         io.Writer
	interactive bool
	last        *fetch.Fetch
	renderDone  chan struct{}

	// generation of the last result set or clear that was printed
	shown uint64
}

func (b *browser) loop(in io.Reader) error {
	printCatalog(b.out, b.controller.Catalog(), false)
	b.prompt()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "q", "quit", "exit":
			return nil
		case "r":
			b.last = b.controller.Refresh()
		case "c":
			b.controller.Clear()
		case "l":
			printCatalog(b.out, b.controller.Catalog(), false)
		default:
			index, err := strconv.Atoi(line)
			if err != nil {
				fmt.Fprintf(b.out, "Unknown command %q\n", line)
				break
			}
			f, err := b.controller.Select(index)
			if err != nil {
				fmt.Fprintf(b.out, "No query at index %d\n", index)
				break
			}
			b.last = f
		}
		b.prompt()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	// scripted input ends before the last fetch settles
	if !b.interactive && b.last != nil {
		_, _ = b.last.Wait(GetContext())
	}
	return nil
}

func (b *browser) prompt() {
	if b.interactive {
		fmt.Fprint(b.out, "> ")
	}
}

func (b *browser) render(ch <-chan events.Event) {
	defer close(b.renderDone)

	for ev := range ch {
		switch e := ev.(type) {
		case *fetch.FetchStartedEvent:
			fmt.Fprintf(b.out, "Retrieving %q...\n", e.Label)
		case *fetch.ResultsChangedEvent:
			b.printCurrent()
		case *fetch.ResultsClearedEvent:
			if e.Generation > b.shown {
				b.shown = e.Generation
				fmt.Fprintln(b.out, "Results cleared")
			}
		case *fetch.FetchFailedEvent:
			fmt.Fprintln(b.out, e.Message)
		}
	}
}

// printCurrent prints the controller's result set unless it was printed
// already or something newer was.
func (b *browser) printCurrent() {
	rs := b.controller.Results()
	if rs == nil || rs.Generation() <= b.shown {
		return
	}
	b.shown = rs.Generation()
	fmt.Fprintf(b.out, "%s: %d files\n", rs.Label(), rs.Count())
	printResults(b.out, rs)
}

// syncWriter serialises writes from the input loop and the renderer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
