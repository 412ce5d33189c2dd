package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxPending caps in-progress flows when no limit is configured.
const DefaultMaxPending = 64

type pendingFlow struct {
	mu      sync.Mutex
	started time.Time
}

// Manager tracks in-progress pairing flows between the form and its
// submission. The oldest flows are evicted once MaxPending is reached.
type Manager struct {
	handler *Handler
	flows   *lru.Cache[string, *pendingFlow]
	logger  Logger
}

// NewManager creates a flow manager.
func NewManager(handler *Handler, maxPending int) (*Manager, error) {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	flows, err := lru.New[string, *pendingFlow](maxPending)
	if err != nil {
		return nil, fmt.Errorf("creating flow store: %w", err)
	}
	return &Manager{handler: handler, flows: flows, logger: noopLogger{}}, nil
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Start opens a flow and returns its id with the initial form.
func (m *Manager) Start(ctx context.Context) (string, Result) {
	id := uuid.New().String()
	m.flows.Add(id, &pendingFlow{started: time.Now()})
	m.logger.Debug("pairing flow started", "flow_id", id)
	return id, m.handler.StepUser(ctx, nil)
}

// Configure submits input to a flow. Terminal results close the flow;
// a form result keeps it open for another attempt.
func (m *Manager) Configure(ctx context.Context, flowID string, input *UserInput) (Result, error) {
	f, ok := m.flows.Get(flowID)
	if !ok {
		return Result{}, ErrFlowNotFound
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// A concurrent submission may have finished the flow while we waited.
	if !m.flows.Contains(flowID) {
		return Result{}, ErrFlowNotFound
	}

	r := m.handler.StepUser(ctx, input)
	if r.Terminal() {
		m.flows.Remove(flowID)
		m.logger.Debug("pairing flow finished",
			"flow_id", flowID,
			"type", r.Type,
			"duration", time.Since(f.started),
		)
	}
	return r, nil
}

// Abort discards an in-progress flow.
func (m *Manager) Abort(flowID string) error {
	if !m.flows.Remove(flowID) {
		return ErrFlowNotFound
	}
	return nil
}

// Pending returns the number of in-progress flows.
func (m *Manager) Pending() int {
	return m.flows.Len()
}
