package batch

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/app"
	"github.com/tphakala/cyanwatch/internal/batch"
	"github.com/tphakala/cyanwatch/internal/conf"
	"github.com/tphakala/cyanwatch/internal/datastore"
	"github.com/tphakala/cyanwatch/internal/errors"
)

const timeLayout = "2006-01-02 15:04:05"

func listCommand(settings *conf.Settings) *cobra.Command {
	var (
		local bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batch jobs with their latest status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings, app.Options{SkipOutputs: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if local {
				if a.Jobs == nil {
					return errors.Newf("job history is not enabled").
						Component("cli").
						Category(errors.CategoryConfiguration).
						Build()
				}
				jobs, err := a.Jobs.ListJobs(limit)
				if err != nil {
					return err
				}
				return printHistory(cmd.OutOrStdout(), jobs)
			}

			if err := a.Batch.OpenTable(cmd.Context()); err != nil {
				return err
			}
			defer a.Batch.CloseTable()
			return PrintRows(cmd.OutOrStdout(), a.Batch.Table())
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "List the locally recorded job history instead of querying the backend")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of local history rows")
	return cmd
}

// PrintRows writes job table rows. Times are shown in the rows' time zone.
func PrintRows(out io.Writer, rows []batch.Row) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB #\tJOB ID\tFILE\tSTATUS\tSUBMITTED\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.JobNum, r.JobID, r.Filename, r.JobStatus,
			formatTime(r.Submitted), formatTime(r.Updated))
	}
	return w.Flush()
}

func printHistory(out io.Writer, jobs []datastore.JobRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB #\tJOB ID\tFILE\tSTATUS\tSUBMITTED\tUPDATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			j.JobNum, j.JobID, j.Filename, j.Status,
			formatTime(j.Submitted.Local()), formatTime(j.Updated.Local()))
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}
