package flow

import (
	"bytes"
	"encoding/json"
)

const clickUpFormSubmitted = "clickup-form-submitted"

type hubSpotCallback struct {
	Type      string `json:"type"`
	EventName string `json:"eventName"`
}

// DetectFormCompletion reports whether an embedded form's message signals a
// completed submission. HubSpot posts an hsFormCallback object; ClickUp posts
// a bare string.
func DetectFormCompletion(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s == clickUpFormSubmitted
	case '{':
		var cb hubSpotCallback
		if err := json.Unmarshal(raw, &cb); err != nil {
			return false
		}
		return cb.Type == "hsFormCallback" && cb.EventName == "onFormSubmitted"
	}
	return false
}
