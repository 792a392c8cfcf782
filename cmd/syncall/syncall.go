// Package syncall provides the sync command.
package syncall

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/app"
	"github.com/tphakala/cyanwatch/internal/conf"
	"github.com/tphakala/cyanwatch/internal/events"
)

const progressBuffer = 256

// Command creates the sync command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Enrich all saved locations with the latest provider readings",
		Long:  "Load the saved locations of the configured data type and fetch provider readings for each, reporting progress until every fetch has settled.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings)
		},
	}
	return cmd
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings) error {
	a, err := app.New(ctx, settings, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	progress := events.NewChannelConsumer("cli-progress", progressBuffer)
	if err := a.Bus.RegisterConsumer(progress); err != nil {
		return err
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		PrintProgress(out, progress.Events())
	}()

	syncErr := a.Sync(ctx)

	// drain the bus before closing the channel so SyncDone is printed
	a.Close()
	progress.Close()
	<-printed
	if n := progress.Dropped(); n > 0 {
		fmt.Fprintf(out, "%d progress events skipped, output fell behind\n", n)
	}

	if syncErr != nil {
		return syncErr
	}
	fmt.Fprintf(out, "synced %d locations (%s)\n", len(a.Store.Locations()), a.Store.DataType())
	return nil
}

// PrintProgress writes one line per progress, change and completion event
// until ch is closed.
func PrintProgress(out io.Writer, ch <-chan events.Event) {
	for ev := range ch {
		switch e := ev.(type) {
		case events.SyncProgress:
			fmt.Fprintf(out, "progress %5.1f%% (%d of %d pending)\n", e.Percent, e.Pending, e.Total)
		case events.LocationChanged:
			fmt.Fprintf(out, "updated  %d %s\n", e.Location.ID, e.Location.Name)
		case events.SyncDone:
			fmt.Fprintln(out, "sync done")
		case events.Notification:
			fmt.Fprintln(out, e.Message)
		}
	}
}
