package cmd

import (
	"github.com/spf13/cobra"

	"github.com/michaeltrefry/Yapplr-sub001/cmd/config"
	"github.com/michaeltrefry/Yapplr-sub001/cmd/send"
	"github.com/michaeltrefry/Yapplr-sub001/cmd/status"
	"github.com/michaeltrefry/Yapplr-sub001/internal/conf"
	"github.com/michaeltrefry/Yapplr-sub001/internal/logging"
	"github.com/michaeltrefry/Yapplr-sub001/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "yapplr-notify",
		Short: "Yapplr notification delivery pipeline CLI",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		send.Command(settings),
		status.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		if debug {
			settings.Debug = true
		}

		logging.Init(settings.Main.SlogLevel())

		return telemetry.Init(telemetry.Config{
			Enabled:     settings.Telemetry.Enabled,
			DSN:         settings.Telemetry.DSN,
			Environment: settings.Telemetry.Environment,
			Debug:       settings.Debug,
		}, logging.Structured())
	}

	return rootCmd
}
