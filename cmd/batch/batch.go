// Package batch provides the batch command and its job subcommands.
package batch

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/conf"
)

// Command creates the batch command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Submit and track batch jobs of candidate locations",
	}

	cmd.AddCommand(
		submitCommand(settings),
		statusCommand(settings),
		cancelCommand(settings),
		listCommand(settings),
	)
	return cmd
}
