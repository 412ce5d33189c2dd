package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout follows the Gray Logic flat bridge scheme:
// graylogic/{category}/{protocol}/{address}
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used for OBEGRÄNSAD displays.
	Protocol = "obegraensad"
)

// Topics provides builders for the display bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DisplayState("4f1c...")
//	// Returns: "graylogic/state/obegraensad/4f1c..."
type Topics struct{}

// DisplayState returns the retained state topic for one paired display.
func (Topics) DisplayState(entryID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, entryID)
}

// DisplayCommand returns the command topic for one paired display.
func (Topics) DisplayCommand(entryID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, entryID)
}

// AllDisplayCommands matches commands for every display.
func (Topics) AllDisplayCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// AllDisplayStates matches state for every display.
func (Topics) AllDisplayStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}

// BridgeHealth returns the bridge health topic (also the LWT topic).
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// EntryIDFromTopic extracts the entry id from a display state or command topic.
// Returns false if the topic is not one of ours.
func EntryIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != Protocol {
		return "", false
	}
	switch parts[1] {
	case "state", "command":
	default:
		return "", false
	}
	if parts[3] == "" || parts[3] == "+" || parts[3] == "#" {
		return "", false
	}
	return parts[3], true
}
