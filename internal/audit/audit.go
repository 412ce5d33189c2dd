package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the integration.
const (
	ActionEntryCreated = "entry_created"
	ActionEntryDeleted = "entry_deleted"
)

// EntityConfigEntry is the entity type of every pairing record.
const EntityConfigEntry = "config_entry"

// Sources of recorded actions.
const (
	SourceAPI = "api"
	SourceCLI = "cli"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Log is a single audit trail record.
type Log struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which logs List returns.
type Filter struct {
	Action   string // optional
	EntityID string // optional
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is one page of logs.
type ListResult struct {
	Logs   []Log `json:"logs"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Repository stores audit logs.
type Repository interface {
	Create(ctx context.Context, log *Log) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder writes audit logs for one source. Failures are logged and
// never returned; auditing must not fail the action it records.
type Recorder struct {
	repo   Repository
	source string
	logger Logger
}

// NewRecorder creates a recorder tagging every log with source.
func NewRecorder(repo Repository, source string) *Recorder {
	return &Recorder{repo: repo, source: source, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Record writes one log entry for a config entry.
func (r *Recorder) Record(ctx context.Context, action, entityID string, details map[string]any) {
	if r == nil {
		return
	}
	log := &Log{
		ID:         newID(),
		Action:     action,
		EntityType: EntityConfigEntry,
		EntityID:   entityID,
		Source:     r.source,
		Details:    details,
	}
	if err := r.repo.Create(context.WithoutCancel(ctx), log); err != nil {
		r.logger.Warn("writing audit log failed", "action", action, "entity_id", entityID, "error", err)
	}
}

// newID returns a short prefixed random ID.
func newID() string {
	return "aud-" + uuid.NewString()[:8]
}
