package batch

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/app"
	"github.com/tphakala/cyanwatch/internal/batch"
	"github.com/tphakala/cyanwatch/internal/conf"
)

func cancelCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Cancel a batch job",
		Long:  "Cancel a running batch job. A job that already finished is left alone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, settings, app.Options{SkipOutputs: true})
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Backend.BatchStatus(ctx, args[0])
			if err != nil {
				return err
			}
			result, err := a.Batch.Cancel(ctx, status)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if batch.State(status.JobStatus).IsTerminal() {
				fmt.Fprintf(out, "job %s: %s (%s)\n", result.JobID, batch.AlreadyCompleteMessage, result.JobStatus)
				return nil
			}
			fmt.Fprintf(out, "job %s: %s\n", result.JobID, result.JobStatus)
			return nil
		},
	}
}
