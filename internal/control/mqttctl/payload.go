package mqttctl

import (
	"encoding/json"
	"strings"

	"github.com/swordlegend/dava.engine/internal/errors"
)

// Message results, used as the metrics label.
const (
	ResultVisible  = "visible"
	ResultHidden   = "hidden"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
)

// ParsePayload converts a control message into a visibility value. Plain
// words (visible, shown, on, true, 1 and hidden, off, false, 0) are accepted
// case-insensitively, as is a JSON object {"visible": bool}.
func ParsePayload(payload []byte) (bool, error) {
	text := strings.ToLower(strings.TrimSpace(string(payload)))

	switch text {
	case "visible", "shown", "show", "on", "true", "1":
		return true, nil
	case "hidden", "hide", "off", "false", "0":
		return false, nil
	}

	if strings.HasPrefix(text, "{") {
		var body struct {
			Visible *bool `json:"visible"`
		}
		if err := json.Unmarshal(payload, &body); err == nil && body.Visible != nil {
			return *body.Visible, nil
		}
	}

	return false, errors.Newf("unrecognized visibility payload %q", truncate(text, 32)).
		Component("mqttctl").
		Category(errors.CategoryValidation).
		Build()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
