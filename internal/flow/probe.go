package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator"
)

// DefaultSettleDelay bounds the wait for a fresh socket to settle before
// state is requested.
const DefaultSettleDelay = 3 * time.Second

// shutdownTimeout bounds releasing the transient coordinator.
const shutdownTimeout = 2 * time.Second

var (
	errNilCoordinator    = errors.New("coordinator factory returned nil")
	errEmptyState        = errors.New("device returned no data")
	errMissingBrightness = errors.New("device data has no brightness field")
)

// Coordinator is the part of a device coordinator the probe uses.
type Coordinator interface {
	Ready() <-chan struct{}
	Refresh(ctx context.Context) (coordinator.State, error)
	Shutdown(ctx context.Context) error
}

// CoordinatorFactory constructs a coordinator for host. Construction starts
// its connection in the background.
type CoordinatorFactory func(host string) Coordinator

// Prober checks that a display is reachable and speaks the expected protocol.
type Prober interface {
	Probe(ctx context.Context, host string) error
}

// ProbeRecorder receives probe outcomes for telemetry.
type ProbeRecorder interface {
	WriteProbeResult(host string, ok bool, elapsed time.Duration)
}

// DeviceProber probes a display through a transient coordinator.
type DeviceProber struct {
	factory     CoordinatorFactory
	settleDelay time.Duration
	logger      Logger
	metrics     *Metrics
	recorder    ProbeRecorder
}

// NewDeviceProber creates a prober. A negative settleDelay is treated as 0.
func NewDeviceProber(factory CoordinatorFactory, settleDelay time.Duration) *DeviceProber {
	if settleDelay < 0 {
		settleDelay = 0
	}
	return &DeviceProber{
		factory:     factory,
		settleDelay: settleDelay,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger.
func (p *DeviceProber) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

// SetMetrics sets the Prometheus collectors probe outcomes are counted in.
func (p *DeviceProber) SetMetrics(m *Metrics) { p.metrics = m }

// SetRecorder sets the telemetry sink for probe outcomes.
func (p *DeviceProber) SetRecorder(r ProbeRecorder) { p.recorder = r }

// Probe connects to the display at host and checks it reports brightness.
//
// It waits for the coordinator to become ready, or for the settle delay,
// whichever comes first, then asks for a one-shot refresh bounded by ctx.
// The coordinator is shut down on every path. Any failure, including a
// panic in the coordinator, is returned as ErrCannotConnect wrapping the
// cause.
func (p *DeviceProber) Probe(ctx context.Context, host string) (err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		p.metrics.observeProbe(err == nil, elapsed.Seconds())
		if p.recorder != nil {
			p.recorder.WriteProbeResult(host, err == nil, elapsed)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = p.fail(host, fmt.Errorf("panic: %v", r))
		}
	}()

	c := p.factory(host)
	if c == nil {
		return p.fail(host, errNilCoordinator)
	}
	defer p.release(ctx, host, c)

	timer := time.NewTimer(p.settleDelay)
	defer timer.Stop()
	select {
	case <-c.Ready():
	case <-timer.C:
	case <-ctx.Done():
		return p.fail(host, ctx.Err())
	}

	state, err := c.Refresh(ctx)
	if err != nil {
		return p.fail(host, err)
	}
	if len(state) == 0 {
		p.logger.Warn("device returned invalid data", "host", host)
		return p.fail(host, errEmptyState)
	}
	if !state.Has(coordinator.KeyBrightness) {
		p.logger.Warn("device returned unexpected data format", "host", host, "keys", len(state))
		return p.fail(host, errMissingBrightness)
	}

	p.logger.Info("connected to OBEGRÄNSAD device", "host", host)
	return nil
}

func (p *DeviceProber) fail(host string, cause error) error {
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		p.logger.Error("connection timeout", "host", host, "error", cause)
	case errors.Is(cause, coordinator.ErrNotConnected):
		p.logger.Error("network connection failed", "host", host, "error", cause)
	default:
		p.logger.Error("error connecting to device", "host", host, "error", cause)
	}
	return fmt.Errorf("%w: %s: %w", ErrCannotConnect, host, cause)
}

func (p *DeviceProber) release(ctx context.Context, host string, c Coordinator) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		p.logger.Warn("probe coordinator shutdown failed", "host", host, "error", err)
	}
}

// NewCoordinatorFactory adapts coordinator.New to a CoordinatorFactory.
func NewCoordinatorFactory(opts coordinator.Options) CoordinatorFactory {
	return func(host string) Coordinator {
		return coordinator.New(host, opts)
	}
}
