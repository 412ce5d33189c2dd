package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator"
)

// StateMessage is published on a display's state topic.
type StateMessage struct {
	EntryID   string            `json:"entry_id"`
	Host      string            `json:"host"`
	Online    bool              `json:"online"`
	State     coordinator.State `json:"state,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// HealthMessage is published on the bridge health topic.
type HealthMessage struct {
	Status    string `json:"status"`
	Displays  int    `json:"displays"`
	Online    int    `json:"online"`
	Timestamp string `json:"timestamp"`
}

// Command is a display command payload. Nil fields are not applied.
type Command struct {
	Brightness *int  `json:"brightness,omitempty"`
	Plugin     *int  `json:"plugin,omitempty"`
	Persist    *bool `json:"persist,omitempty"`
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Brightness == nil && cmd.Plugin == nil && (cmd.Persist == nil || !*cmd.Persist) {
		return Command{}, fmt.Errorf("%w: no brightness, plugin or persist field", ErrInvalidCommand)
	}
	return cmd, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
