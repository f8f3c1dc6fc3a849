package conf

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/swordlegend/dava.engine/internal/errors"
)

const redactedValue = "[REDACTED]"

// Dump renders the effective settings as YAML with secrets redacted.
func Dump(settings *Settings) ([]byte, error) {
	redacted := *settings
	if redacted.Control.MQTT.Password != "" {
		redacted.Control.MQTT.Password = redactedValue
	}
	if redacted.Telemetry.DSN != "" {
		redacted.Telemetry.DSN = redactedValue
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "dump_settings").
			Build()
	}
	if err := enc.Close(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "dump_settings").
			Build()
	}
	return buf.Bytes(), nil
}
