package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/app"
	"github.com/tphakala/cyanwatch/internal/batch"
	"github.com/tphakala/cyanwatch/internal/conf"
	"github.com/tphakala/cyanwatch/internal/events"
)

const statusBuffer = 64

func submitCommand(settings *conf.Settings) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "submit <file.csv>",
		Short: "Validate a CSV of locations and submit it as a batch job",
		Long:  "Validate the CSV header and rows, submit the locations as a batch job and poll its status until it reaches a terminal state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), cmd.OutOrStdout(), settings, args[0], !noWait)
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return after submission without polling")
	return cmd
}

func runSubmit(ctx context.Context, out io.Writer, settings *conf.Settings, path string, wait bool) error {
	name := filepath.Base(path)
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return batch.DefaultLimits().ValidateFile(batch.FileInfo{})
	}
	if err != nil {
		return err
	}

	a, err := app.New(ctx, settings, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	statuses := events.NewChannelConsumer("cli-batch", statusBuffer)
	if err := a.Bus.RegisterConsumer(statuses); err != nil {
		return err
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printStatuses(out, statuses.Events())
	}()
	finish := func() {
		a.Close()
		statuses.Close()
		<-printed
	}

	status, verr, err := a.Batch.UploadFile(ctx, name, string(body))
	if verr != nil {
		finish()
		return verr
	}
	if err != nil {
		finish()
		return err
	}

	if wait {
		waitForJob(ctx, a)
	}
	finish()

	current, _ := a.Batch.Current()
	if current.JobID == "" {
		current = status
	}
	fmt.Fprintf(out, "job %s (#%d): %s\n", current.JobID, current.JobNum, current.JobStatus)
	return a.Batch.LastError()
}

// waitForJob blocks until polling ends or ctx is done.
func waitForJob(ctx context.Context, a *app.App) {
	ticker := newPollTicker(a)
	defer ticker.Stop()
	for a.Batch.Polling() {
		select {
		case <-ctx.Done():
			a.Batch.StopPolling()
			return
		case <-ticker.C:
		}
	}
}

func printStatuses(out io.Writer, ch <-chan events.Event) {
	last := ""
	for ev := range ch {
		switch e := ev.(type) {
		case events.BatchStatusChanged:
			if e.JobStatus != last {
				fmt.Fprintf(out, "status   %s\n", e.JobStatus)
				last = e.JobStatus
			}
		case events.Notification:
			fmt.Fprintln(out, e.Message)
		}
	}
}
