package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/cyanwatch/cmd/batch"
	"github.com/tphakala/cyanwatch/cmd/configure"
	"github.com/tphakala/cyanwatch/cmd/locations"
	"github.com/tphakala/cyanwatch/cmd/syncall"
	"github.com/tphakala/cyanwatch/internal/buildinfo"
	"github.com/tphakala/cyanwatch/internal/conf"
	"github.com/tphakala/cyanwatch/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled from
// the config file before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "cyanwatch",
		Short:         "Cyanobacteria location monitoring CLI",
		Version:       buildinfo.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("token", "", "Backend bearer token")

	configureCmd := configure.Command(settings)
	rootCmd.AddCommand(
		locations.Command(settings),
		syncall.Command(settings),
		batch.Command(settings),
		configureCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// config init must work without a readable config
		if cmd == configureCmd || cmd.Parent() == configureCmd {
			return nil
		}
		if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
		if err := viper.BindPFlag("backend.token", rootCmd.PersistentFlags().Lookup("token")); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}

		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings)
	}

	return rootCmd
}

// initialize sets up the global logger from settings.
func initialize(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}
