// Package locations provides the locations command.
package locations

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/app"
	"github.com/tphakala/cyanwatch/internal/conf"
	"github.com/tphakala/cyanwatch/internal/location"
)

// Command creates the locations command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		dataType    string
		compareOnly bool
	)

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List monitored locations with their latest readings",
		Long:  "Load the saved locations, enrich them with the latest provider readings and print them as a table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataType != "" {
				t, err := location.ParseDataType(dataType)
				if err != nil {
					return err
				}
				settings.Sync.DataType = t.String()
			}
			return run(cmd.Context(), cmd.OutOrStdout(), settings, compareOnly)
		},
	}

	cmd.Flags().StringVarP(&dataType, "type", "t", "", "Data type to list (weekly or daily)")
	cmd.Flags().BoolVar(&compareOnly, "compare", false, "Only list locations on the compare list")

	return cmd
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, compareOnly bool) error {
	a, err := app.New(ctx, settings, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Sync(ctx); err != nil {
		return err
	}

	locs := a.Store.Locations()
	if compareOnly {
		locs = a.Store.CompareLocations()
	}
	return PrintTable(out, locs)
}

// PrintTable writes locs as an aligned table.
func PrintTable(out io.Writer, locs []location.Location) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLATITUDE\tLONGITUDE\tCELLS/ML\tMAX\tCHANGE\tDATA DATE\tSINCE\tMARKED")
	for i := range locs {
		l := &locs[i]
		change := "-"
		if l.ConcentrationChange != nil {
			change = strconv.Itoa(*l.ConcentrationChange)
		}
		marked := ""
		if l.Marked {
			marked = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%g\t%s\t%s\t%s\t%s\n",
			l.ID, l.Name, l.LatDMS, l.LonDMS,
			l.CellConcentration, l.MaxCellConcentration, change,
			l.DataDate, l.ChangeDate, marked)
	}
	return w.Flush()
}
