package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
)

// DefaultProbeTimeout bounds a whole probe.
const DefaultProbeTimeout = 10 * time.Second

// Logger defines the logging interface used by the flow package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EntryStore is the registry the flow checks and writes.
// *entry.Registry satisfies it.
type EntryStore interface {
	Exists(ctx context.Context, uniqueID string) (bool, error)
	Create(ctx context.Context, e *entry.Entry) error
}

// HandlerConfig configures a Handler. Zero values use the defaults.
type HandlerConfig struct {
	SuggestedHost string
	ProbeTimeout  time.Duration
}

// Handler runs the "user" step.
type Handler struct {
	store         EntryStore
	prober        Prober
	suggestedHost string
	probeTimeout  time.Duration
	logger        Logger
	metrics       *Metrics
	onCreate      func(entry.Entry)
}

// NewHandler creates a pairing flow handler.
func NewHandler(store EntryStore, prober Prober, cfg HandlerConfig) *Handler {
	if cfg.SuggestedHost == "" {
		cfg.SuggestedHost = DefaultSuggestedHost
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Handler{
		store:         store,
		prober:        prober,
		suggestedHost: cfg.SuggestedHost,
		probeTimeout:  cfg.ProbeTimeout,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger.
func (h *Handler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// SetMetrics sets the collectors step results are counted in.
func (h *Handler) SetMetrics(m *Metrics) { h.metrics = m }

// OnEntryCreated registers a callback run after an entry is persisted.
func (h *Handler) OnEntryCreated(fn func(entry.Entry)) { h.onCreate = fn }

// Step dispatches to the named step. Only StepUser exists.
func (h *Handler) Step(ctx context.Context, stepID string, input *UserInput) (Result, error) {
	if stepID != StepUser {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStep, stepID)
	}
	return h.StepUser(ctx, input), nil
}

// StepUser handles the "user" step.
//
// With nil input it returns the empty form. Otherwise it probes the
// submitted host and returns the form with an error, an abort, or the
// created entry.
func (h *Handler) StepUser(ctx context.Context, input *UserInput) Result {
	r := h.stepUser(ctx, input)
	h.metrics.observeResult(r)
	return r
}

func (h *Handler) stepUser(ctx context.Context, input *UserInput) Result {
	if input == nil {
		return h.form(nil)
	}

	host := strings.TrimSpace(input.Host)
	if host == "" {
		return h.form(map[string]string{FieldHost: ErrorInvalidHost})
	}

	if err := h.probe(ctx, host); err != nil {
		h.logger.Warn("pairing probe failed", "host", host, "error", err)
		return h.form(map[string]string{ErrorKeyBase: ErrorCannotConnect})
	}

	exists, err := h.store.Exists(ctx, host)
	if err != nil {
		h.logger.Error("checking existing entries failed", "host", host, "error", err)
		return h.form(map[string]string{ErrorKeyBase: ErrorUnknown})
	}
	if exists {
		return abort(AbortAlreadyConfigured)
	}

	e := entry.New(host)
	if err := h.store.Create(ctx, e); err != nil {
		if errors.Is(err, entry.ErrEntryExists) {
			return abort(AbortAlreadyConfigured)
		}
		h.logger.Error("creating entry failed", "host", host, "error", err)
		return h.form(map[string]string{ErrorKeyBase: ErrorUnknown})
	}

	h.logger.Info("display paired", "host", host, "entry_id", e.ID)
	if h.onCreate != nil {
		h.onCreate(*e)
	}

	data := e.Data
	return Result{
		Type:    ResultTypeCreateEntry,
		Title:   e.Title,
		Data:    &data,
		EntryID: e.ID,
	}
}

// probe runs the prober under the probe timeout. A panicking Prober is
// reported as ErrCannotConnect like any other failure.
func (h *Handler) probe(ctx context.Context, host string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCannotConnect, r)
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()
	return h.prober.Probe(probeCtx, host)
}

func (h *Handler) form(errs map[string]string) Result {
	if errs == nil {
		errs = map[string]string{}
	}
	schema := UserSchema(h.suggestedHost)
	return Result{
		Type:   ResultTypeForm,
		StepID: StepUser,
		Schema: &schema,
		Errors: errs,
	}
}

func abort(reason string) Result {
	return Result{Type: ResultTypeAbort, Reason: reason}
}
