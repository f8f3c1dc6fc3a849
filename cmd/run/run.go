package run

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/swordlegend/dava.engine/internal/app"
	"github.com/swordlegend/dava.engine/internal/buildinfo"
	"github.com/swordlegend/dava.engine/internal/conf"
	"github.com/swordlegend/dava.engine/internal/logger"
	"github.com/swordlegend/dava.engine/internal/telemetry"
)

// Command creates the command that runs the service until interrupted.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the audio lifecycle service",
		Long:  "Start the activity host, bind the playback device to its visibility and serve the control API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := telemetry.Init(&settings.Telemetry, info.GetVersion()); err != nil {
				// Reporting is optional, the service runs without it.
				logger.Global().Module("run").Warn("telemetry disabled", logger.Error(err))
			}
			defer telemetry.Shutdown(telemetry.DefaultFlushTimeout)

			return app.Run(cmd.Context(), settings,
				app.WithLogger(logger.Global().Module("app")),
				app.WithVersion(info.GetVersion()))
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the run command. Flags override
// the config file through viper.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("backend", "", `Audio backend ("malgo" or "none")`)
	flags.String("device", "", "Playback device name or ID, empty for the system default")
	flags.String("clip", "", "WAV or FLAC clip to loop while visible")
	flags.String("listen", "", "Listen address of the control API")
	flags.Bool("visible", false, "Start with the activity visible")

	bindings := map[string]string{
		"backend": "audio.backend",
		"device":  "audio.device",
		"clip":    "audio.clip.path",
		"listen":  "control.http.listen",
		"visible": "host.initiallyvisible",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
