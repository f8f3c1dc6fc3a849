// config.go: settings struct and loading for the audio lifecycle service.
package conf

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is prepended to environment variable overrides, DAVA_AUDIO_BACKEND etc.
const EnvPrefix = "DAVA"

// LoggingSettings controls console and file logging.
type LoggingSettings struct {
	Level        string            // default level: trace, debug, info, warn, error
	File         string            // JSON log file path, empty disables file output
	Timezone     string            // "Local", "UTC" or IANA name
	ModuleLevels map[string]string // per-module level overrides
}

// HostSettings configures the simulated activity host.
type HostSettings struct {
	InitiallyVisible bool // host is visible before the adapter is constructed
}

// ClipSettings configures the looping clip fed to the playback device.
type ClipSettings struct {
	Path string  // wav or flac file, empty plays silence
	Gain float64 // linear gain, 0.0 to 2.0
}

// AudioSettings contains settings for the playback device.
type AudioSettings struct {
	Backend      string // "malgo" or "none"
	Device       string // device name or ID, empty selects the system default
	SampleRate   int    // output sample rate in Hz
	Channels     int    // output channel count, 1 or 2
	BufferFrames int    // period size in frames, 0 lets the backend decide
	Clip         ClipSettings
}

// HTTPSettings configures the control HTTP API.
type HTTPSettings struct {
	Enabled bool
	Listen  string // host:port
}

// MQTTSettings configures the MQTT visibility control.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:1883
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      int
}

// ControlSettings groups the external control surfaces.
type ControlSettings struct {
	HTTP HTTPSettings
	MQTT MQTTSettings
}

// MetricsSettings toggles prometheus collectors and the /metrics endpoint.
type MetricsSettings struct {
	Enabled bool
}

// TelemetrySettings configures error reporting to Sentry.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings contains all configuration options for the service.
type Settings struct {
	Debug     bool // true to enable debug logging everywhere
	Logging   LoggingSettings
	Host      HostSettings
	Audio     AudioSettings
	Control   ControlSettings
	Metrics   MetricsSettings
	Telemetry TelemetrySettings
}

// Load reads settings using the global viper instance, which cobra flags are bound to.
func Load(configPath string) (*Settings, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith reads defaults, the config file and environment overrides into
// Settings and validates the result. An explicit configPath must exist; when
// it is empty the default search paths are tried and a missing file is fine.
func LoadWith(v *viper.Viper, configPath string) (*Settings, error) {
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	GetLogger().Debug("settings loaded",
		logger.String("config_file", v.ConfigFileUsed()),
		logger.String("audio_backend", settings.Audio.Backend))

	return settings, nil
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Context("path", configPath).
				Build()
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}
	return nil
}

// DefaultConfigPaths returns the directories searched for config.yaml, in order.
func DefaultConfigPaths() []string {
	paths := []string{"."}

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "dava-audio"))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/dava-audio")
	}
	return paths
}

// DefaultConfig returns the annotated default configuration file.
func DefaultConfig() ([]byte, error) {
	data, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// WriteDefaultConfig writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteDefaultConfig(path string) error {
	data, err := DefaultConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Build()
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "write_config").
			Build()
	}
	return nil
}

// LoggingConfig converts the logging settings into the logger's configuration.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     s.Logging.Timezone,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
		ModuleLevels: s.Logging.ModuleLevels,
	}
	if s.Logging.File != "" {
		cfg.FileOutput = &logger.FileOutput{Enabled: true, Path: s.Logging.File, Level: level}
	}
	return cfg
}
