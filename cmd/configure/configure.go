// Package configure provides the config command.
package configure

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/cyanwatch/internal/conf"
)

// Command creates the config command and its init subcommand.
func Command(_ *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file populated with defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			written, err := WriteDefault(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", written)
			return nil
		},
	}

	cmd.AddCommand(initCmd)
	return cmd
}

// WriteDefault writes the default settings to path, or to config.yaml in the
// first default config directory when path is empty.
func WriteDefault(path string) (string, error) {
	if path == "" {
		paths, err := conf.GetDefaultConfigPaths()
		if err != nil {
			return "", err
		}
		path = filepath.Join(paths[0], "config.yaml")
	}

	settings, err := conf.DefaultSettings()
	if err != nil {
		return "", err
	}
	if err := conf.SaveYAMLConfig(path, settings); err != nil {
		return "", err
	}
	return path, nil
}
