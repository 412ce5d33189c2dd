package coordinator

import (
	"encoding/json"
	"math"
)

// State is the last info payload pushed by the display firmware, e.g.
//
//	{"brightness":255,"plugin":3,"plugins":[...],"rotation":0,"status":"NONE","scheduleActive":false}
//
// It is kept as a map so unknown firmware fields pass through to MQTT
// unchanged.
type State map[string]any

// Keys read by the integration.
const (
	KeyBrightness = "brightness"
	KeyPlugin     = "plugin"
)

// Has reports whether the state carries key.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Brightness returns the reported brightness.
func (s State) Brightness() (int, bool) {
	return s.intValue(KeyBrightness)
}

// Plugin returns the active plugin id.
func (s State) Plugin() (int, bool) {
	return s.intValue(KeyPlugin)
}

func (s State) intValue(key string) (int, bool) {
	switch v := s[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

// decodeState parses an info frame, dropping the event discriminator.
func decodeState(raw []byte) (State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	delete(s, "event")
	return s, nil
}
