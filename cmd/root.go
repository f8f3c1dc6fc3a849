// Package cmd holds the command line interface of the audio lifecycle service.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/swordlegend/dava.engine/cmd/config"
	"github.com/swordlegend/dava.engine/cmd/devices"
	"github.com/swordlegend/dava.engine/cmd/run"
	"github.com/swordlegend/dava.engine/internal/buildinfo"
	"github.com/swordlegend/dava.engine/internal/conf"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// skipSettingsAnnotation marks commands that run without loading settings
const skipSettingsAnnotation = "skip-settings"

// RootCommand creates and returns the root command
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configPath string
	var centralLogger *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "dava-audio",
		Short:         "Audio lifecycle service",
		Long:          "Runs an audio playback device bound to the visibility of an activity host.",
		Version:       info.String(),
		SilenceUsage:  true,
	}

	if err := setupFlags(rootCmd, &configPath); err != nil {
		panic(err)
	}

	subcommands := []*cobra.Command{
		run.Command(settings, info),
		devices.Command(),
		configcmd.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipSettingsAnnotation] == "true" {
			return nil
		}

		loaded, err := conf.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading settings: %w", err)
		}
		*settings = *loaded

		centralLogger, err = logger.NewCentralLogger(settings.LoggingConfig())
		if err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		logger.SetGlobal(centralLogger)
		return nil
	}

	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if centralLogger == nil {
			return nil
		}
		return centralLogger.Close()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configPath *string) error {
	rootCmd.PersistentFlags().StringVarP(configPath, "config", "c", "", "Path to config file (default: search ./config.yaml and the user config dir)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
