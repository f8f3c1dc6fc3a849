// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// Audio defaults shared with the device package.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	BackendMalgo      = "malgo"
	BackendNone       = "none"
)

// setDefaultConfig registers default values for each configuration key.
// Every key needs a default for AutomaticEnv overrides to reach Unmarshal.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.modulelevels", map[string]string{})

	v.SetDefault("host.initiallyvisible", false)

	v.SetDefault("audio.backend", BackendMalgo)
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.samplerate", DefaultSampleRate)
	v.SetDefault("audio.channels", DefaultChannels)
	v.SetDefault("audio.bufferframes", 0)
	v.SetDefault("audio.clip.path", "")
	v.SetDefault("audio.clip.gain", 1.0)

	v.SetDefault("control.http.enabled", true)
	v.SetDefault("control.http.listen", "127.0.0.1:8095")

	v.SetDefault("control.mqtt.enabled", false)
	v.SetDefault("control.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("control.mqtt.topic", "dava/activity/visibility")
	v.SetDefault("control.mqtt.clientid", "dava-audio")
	v.SetDefault("control.mqtt.username", "")
	v.SetDefault("control.mqtt.password", "")
	v.SetDefault("control.mqtt.qos", 1)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
}
