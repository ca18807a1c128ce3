package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rescale/filequery/internal/fetch"
	"github.com/rescale/filequery/internal/progress"
)

// newRunCmd creates the 'run' command.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <index>",
		Short: "Run one catalog query and print the matching files",
		Long: `Execute the query at the given catalog index against the configured
file store and print the matching files.

Examples:
  # Files shared with me, from the built-in sample store
  filequery run 1

  # Same query against a bucket
  filequery run 1 --backend s3 --config ./s3.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid query index %q: %w", args[0], err)
			}

			ctx := GetContext()
			svc, bus, err := newService(ctx)
			if err != nil {
				return err
			}
			defer bus.Close()
			defer svc.Close()

			var reporter progress.Reporter = quietReporter{}
			if term.IsTerminal(int(os.Stderr.Fd())) {
				reporter = progress.NewCLIProgress(cmd.ErrOrStderr())
			}
			watched := progress.Watch(context.Background(), bus, reporter)

			f, err := svc.Controller().Select(index)
			if err != nil {
				return fmt.Errorf("query %d: %w", index, err)
			}

			outcome, err := f.Wait(ctx)
			// closing the bus lets the reporter drain and finish first
			bus.Close()
			<-watched

			switch outcome {
			case fetch.OutcomeApplied:
				printResults(cmd.OutOrStdout(), svc.Controller().Results())
				return nil
			case fetch.OutcomeFailed:
				return err
			}
			if err == nil {
				err = fmt.Errorf("fetch %s ended as %s", f.ID(), outcome)
			}
			return err
		},
	}

	return cmd
}

// quietReporter discards progress when stderr is not a terminal.
type quietReporter struct{}

func (quietReporter) Start(string) {}
func (quietReporter) Finish(int) {}
func (quietReporter) Error(string) {}
