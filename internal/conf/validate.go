// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/swordlegend/dava.engine/internal/errors"
)

const (
	minSampleRate = 8000
	maxSampleRate = 192000
	maxGain       = 2.0
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateLoggingSettings(&settings.Logging)...)
	ve.Errors = append(ve.Errors, validateAudioSettings(&settings.Audio)...)
	ve.Errors = append(ve.Errors, validateHTTPSettings(&settings.Control.HTTP)...)
	ve.Errors = append(ve.Errors, validateMQTTSettings(&settings.Control.MQTT)...)
	ve.Errors = append(ve.Errors, validateTelemetrySettings(&settings.Telemetry)...)

	if len(ve.Errors) == 0 {
		return nil
	}

	return errors.New(ve).
		Component("conf").
		Category(errors.CategoryValidation).
		Context("error_count", len(ve.Errors)).
		Build()
}

func validateLoggingSettings(s *LoggingSettings) []string {
	var errs []string
	if !isValidLevel(s.Level) {
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of trace, debug, info, warn, error", s.Level))
	}
	for module, level := range s.ModuleLevels {
		if !isValidLevel(level) {
			errs = append(errs, fmt.Sprintf("logging.modulelevels.%s %q is not a valid level", module, level))
		}
	}
	return errs
}

func isValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}

func validateAudioSettings(s *AudioSettings) []string {
	var errs []string

	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend != BackendMalgo && s.Backend != BackendNone {
		errs = append(errs, fmt.Sprintf("audio.backend %q must be %q or %q", s.Backend, BackendMalgo, BackendNone))
	}
	if s.SampleRate < minSampleRate || s.SampleRate > maxSampleRate {
		errs = append(errs, fmt.Sprintf("audio.samplerate %d out of range [%d, %d]", s.SampleRate, minSampleRate, maxSampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Sprintf("audio.channels %d must be 1 or 2", s.Channels))
	}
	if s.BufferFrames < 0 {
		errs = append(errs, fmt.Sprintf("audio.bufferframes %d must not be negative", s.BufferFrames))
	}
	if s.Clip.Gain < 0 || s.Clip.Gain > maxGain {
		errs = append(errs, fmt.Sprintf("audio.clip.gain %.2f out of range [0, %.1f]", s.Clip.Gain, maxGain))
	}
	if s.Clip.Path != "" {
		switch ext := strings.ToLower(s.Clip.Path[strings.LastIndex(s.Clip.Path, ".")+1:]); ext {
		case "wav", "flac":
		default:
			errs = append(errs, fmt.Sprintf("audio.clip.path has unsupported extension %q", ext))
		}
	}
	return errs
}

func validateHTTPSettings(s *HTTPSettings) []string {
	if !s.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return []string{fmt.Sprintf("control.http.listen %q: %v", s.Listen, err)}
	}
	return nil
}

func validateMQTTSettings(s *MQTTSettings) []string {
	if !s.Enabled {
		return nil
	}

	var errs []string
	u, err := url.Parse(s.Broker)
	switch {
	case s.Broker == "":
		errs = append(errs, "control.mqtt.broker is required when mqtt is enabled")
	case err != nil:
		errs = append(errs, fmt.Sprintf("control.mqtt.broker: %v", err))
	case u.Scheme != "tcp" && u.Scheme != "ssl" && u.Scheme != "tls" && u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "mqtt" && u.Scheme != "mqtts":
		errs = append(errs, fmt.Sprintf("control.mqtt.broker scheme %q is not supported", u.Scheme))
	}
	if strings.TrimSpace(s.Topic) == "" {
		errs = append(errs, "control.mqtt.topic is required when mqtt is enabled")
	}
	if strings.ContainsAny(s.Topic, "+#") {
		errs = append(errs, "control.mqtt.topic must not contain wildcards")
	}
	if s.QoS < 0 || s.QoS > 2 {
		errs = append(errs, fmt.Sprintf("control.mqtt.qos %d must be 0, 1 or 2", s.QoS))
	}
	return errs
}

func validateTelemetrySettings(s *TelemetrySettings) []string {
	if s.Enabled && s.DSN == "" {
		return []string{"telemetry.dsn is required when telemetry is enabled"}
	}
	return nil
}
