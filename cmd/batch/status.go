package batch

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/cyanwatch/internal/app"
	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/batch"
	"github.com/tphakala/cyanwatch/internal/conf"
)

// maxParallelQueries bounds concurrent status requests.
const maxParallelQueries = 4

// StatusQuerier is the status lookup of the backend client.
type StatusQuerier interface {
	BatchStatus(ctx context.Context, jobID string) (backend.BatchStatus, error)
}

func statusCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status <jobID>...",
		Short: "Show the status of one or more batch jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings, app.Options{SkipOutputs: true})
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := QueryStatuses(cmd.Context(), a.Backend, args)
			if err != nil {
				return err
			}
			return printStatusTable(cmd.OutOrStdout(), statuses)
		},
	}
}

// QueryStatuses looks up every job in parallel. Results keep the order of
// jobIDs; the first failure cancels the rest.
func QueryStatuses(ctx context.Context, q StatusQuerier, jobIDs []string) ([]backend.BatchStatus, error) {
	results := make([]backend.BatchStatus, len(jobIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelQueries)
	for i, id := range jobIDs {
		g.Go(func() error {
			status, err := q.BatchStatus(ctx, id)
			if err != nil {
				return fmt.Errorf("job %s: %w", id, err)
			}
			results[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printStatusTable(out io.Writer, statuses []backend.BatchStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tJOB #\tSTATUS\tDONE")
	for _, s := range statuses {
		done := ""
		if batch.State(s.JobStatus).IsTerminal() {
			done = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.JobID, s.JobNum, s.JobStatus, done)
	}
	return w.Flush()
}

func newPollTicker(a *app.App) *time.Ticker {
	interval := a.Settings.Batch.PollInterval
	if interval <= 0 {
		interval = batch.DefaultPollInterval
	}
	return time.NewTicker(interval / 2)
}
