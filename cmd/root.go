package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/callctl/cmd/devices"
	"github.com/tphakala/callctl/cmd/serve"
	"github.com/tphakala/callctl/cmd/version"
	"github.com/tphakala/callctl/internal/conf"
	"github.com/tphakala/callctl/internal/logging"
)

// RootCommand creates and returns the root command. settings is filled in
// before any sub-command that needs configuration runs.
func RootCommand(v *viper.Viper, settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "callctl",
		Short:         "Call audio routing and screen capture control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	versionCmd := version.Command()
	rootCmd.AddCommand(
		serve.Command(v, settings),
		devices.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip configuration for the version command
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(v, configFile, settings)
	}

	return rootCmd
}

// initialize loads configuration and applies the log level before any
// sub-command runs.
func initialize(v *viper.Viper, configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(v, configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	levelName := settings.Log.Level
	if settings.Debug {
		levelName = "debug"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	logging.SetLevel(level)
	return nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config file (default: search ./, ~/.config/callctl, /etc/callctl)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn or error")

	if err := v.BindPFlag("debug", flags.Lookup("debug")); err != nil {
		return fmt.Errorf("error binding debug flag: %w", err)
	}
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return fmt.Errorf("error binding log-level flag: %w", err)
	}
	return nil
}
