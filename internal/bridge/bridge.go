package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator"
	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/mqtt"
)

// Defaults for Config.
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultHealthInterval = 60 * time.Second

	refreshTimeout  = 5 * time.Second
	commandTimeout  = 5 * time.Second
	shutdownTimeout = 2 * time.Second

	commandQoS = 1
)

// Publisher is the MQTT surface the bridge uses. *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Telemetry receives display samples. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteDisplayState(entryID, host string, brightness, plugin int)
}

// Display is the coordinator surface the bridge drives.
type Display interface {
	Connected() bool
	Refresh(ctx context.Context) (coordinator.State, error)
	SetBrightness(ctx context.Context, brightness int) error
	SetPlugin(ctx context.Context, plugin int) error
	Persist(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// DisplayFactory creates a running display connection for an entry.
// onState must be called for every state frame the display pushes.
type DisplayFactory func(e entry.Entry, onState func(coordinator.State)) Display

// NewDisplayFactory adapts coordinator.New to a DisplayFactory.
func NewDisplayFactory(opts coordinator.Options) DisplayFactory {
	return func(e entry.Entry, onState func(coordinator.State)) Display {
		o := opts
		o.OnState = onState
		return coordinator.New(e.Data.Host, o)
	}
}

// Logger defines the logging interface used by the bridge.
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

// Config configures a Bridge. Zero values use the defaults.
type Config struct {
	PollInterval   time.Duration
	HealthInterval time.Duration
}

type managedDisplay struct {
	entry   entry.Entry
	display Display

	// mu orders state publishes against removal. Once removed is set no
	// further state is published for the entry.
	mu      sync.Mutex
	removed bool
}

// Bridge manages the displays of all paired entries.
type Bridge struct {
	pub       Publisher
	factory   DisplayFactory
	cfg       Config
	telemetry Telemetry
	logger    Logger

	mu       sync.RWMutex
	displays map[string]*managedDisplay
	running  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bridge. pub may be nil when MQTT is disabled; state is
// then only polled and written to telemetry.
func New(pub Publisher, factory DisplayFactory, cfg Config) *Bridge {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	return &Bridge{
		pub:      pub,
		factory:  factory,
		cfg:      cfg,
		logger:   noopLogger{},
		displays: make(map[string]*managedDisplay),
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// SetTelemetry sets the sink for brightness samples.
func (b *Bridge) SetTelemetry(t Telemetry) { b.telemetry = t }

// Start subscribes to display commands, connects every entry and starts
// the poll and health loops.
func (b *Bridge) Start(ctx context.Context, entries []entry.Entry) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	if b.pub != nil {
		if err := b.pub.Subscribe(mqtt.Topics{}.AllDisplayCommands(), commandQoS, b.handleCommand); err != nil {
			b.mu.Lock()
			b.running = false
			b.mu.Unlock()
			return fmt.Errorf("subscribing to display commands: %w", err)
		}
	}

	for _, e := range entries {
		b.AddEntry(e)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel

	b.wg.Add(2)
	go b.loop(loopCtx, b.cfg.PollInterval, b.pollAll)
	go b.loop(loopCtx, b.cfg.HealthInterval, b.publishHealth)

	b.logger.Info("display bridge started", "displays", len(entries))
	return nil
}

// Stop stops the loops and shuts every display down.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	displays := b.displays
	b.displays = make(map[string]*managedDisplay)
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()

	if b.pub != nil {
		if err := b.pub.Unsubscribe(mqtt.Topics{}.AllDisplayCommands()); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			b.logger.Warn("unsubscribing display commands failed", "error", err)
		}
	}

	var errs []error
	for id, d := range displays {
		if err := d.display.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("display %s: %w", id, err))
		}
	}

	b.logger.Info("display bridge stopped")
	return errors.Join(errs...)
}

// AddEntry starts managing the display for e. Re-adding an entry is a no-op.
func (b *Bridge) AddEntry(e entry.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.displays[e.ID]; ok {
		return
	}

	md := &managedDisplay{entry: e}
	md.display = b.factory(e, func(s coordinator.State) {
		b.onState(md, s)
	})
	b.displays[e.ID] = md

	b.logger.Info("display added", "entry_id", e.ID, "host", e.Data.Host)
}

// RemoveEntry stops managing the display for the entry ID and clears its
// retained state.
func (b *Bridge) RemoveEntry(ctx context.Context, id string) {
	b.mu.Lock()
	md, ok := b.displays[id]
	delete(b.displays, id)
	b.mu.Unlock()

	if !ok {
		return
	}

	md.mu.Lock()
	md.removed = true
	md.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := md.display.Shutdown(shutdownCtx); err != nil {
		b.logger.Warn("display shutdown failed", "entry_id", id, "error", err)
	}

	if b.pub != nil {
		// An empty retained payload deletes the retained message.
		if err := b.pub.PublishRetained(mqtt.Topics{}.DisplayState(id), nil); err != nil {
			b.logger.Warn("clearing display state failed", "entry_id", id, "error", err)
		}
	}
	b.logger.Info("display removed", "entry_id", id)
}

// DisplayCount returns the number of managed displays.
func (b *Bridge) DisplayCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.displays)
}

func (b *Bridge) lookup(id string) (*managedDisplay, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	md, ok := b.displays[id]
	return md, ok
}

func (b *Bridge) snapshot() []*managedDisplay {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*managedDisplay, 0, len(b.displays))
	for _, md := range b.displays {
		out = append(out, md)
	}
	return out
}

func (b *Bridge) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (b *Bridge) pollAll(ctx context.Context) {
	for _, md := range b.snapshot() {
		b.poll(ctx, md)
	}
}

func (b *Bridge) poll(ctx context.Context, md *managedDisplay) {
	if !md.display.Connected() {
		b.publishState(md, false, nil)
		return
	}

	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	state, err := md.display.Refresh(refreshCtx)
	if err != nil {
		b.logger.Debug("display refresh failed", "entry_id", md.entry.ID, "error", err)
		b.publishState(md, false, nil)
		return
	}
	b.onState(md, state)
}

func (b *Bridge) onState(md *managedDisplay, state coordinator.State) {
	if !b.publishState(md, true, state) || b.telemetry == nil {
		return
	}
	brightness, ok := state.Brightness()
	if !ok {
		return
	}
	plugin, _ := state.Plugin()
	b.telemetry.WriteDisplayState(md.entry.ID, md.entry.Data.Host, brightness, plugin)
}

// publishState publishes the retained state of md. It reports false once
// md has been removed.
func (b *Bridge) publishState(md *managedDisplay, online bool, state coordinator.State) bool {
	md.mu.Lock()
	defer md.mu.Unlock()

	if md.removed {
		return false
	}
	if b.pub == nil {
		return true
	}

	e := md.entry
	payload, err := json.Marshal(StateMessage{
		EntryID:   e.ID,
		Host:      e.Data.Host,
		Online:    online,
		State:     state,
		Timestamp: timestamp(),
	})
	if err != nil {
		b.logger.Error("encoding display state failed", "entry_id", e.ID, "error", err)
		return true
	}

	if err := b.pub.PublishRetained(mqtt.Topics{}.DisplayState(e.ID), payload); err != nil {
		b.logger.Debug("publishing display state failed", "entry_id", e.ID, "error", err)
	}
	return true
}

func (b *Bridge) publishHealth(_ context.Context) {
	if b.pub == nil {
		return
	}

	displays := b.snapshot()
	online := 0
	for _, md := range displays {
		if md.display.Connected() {
			online++
		}
	}

	//nolint:errchkjson // Fixed struct of strings and ints
	payload, _ := json.Marshal(HealthMessage{
		Status:    "online",
		Displays:  len(displays),
		Online:    online,
		Timestamp: timestamp(),
	})
	if err := b.pub.PublishRetained(mqtt.Topics{}.BridgeHealth(), payload); err != nil {
		b.logger.Debug("publishing bridge health failed", "error", err)
	}
}

// handleCommand is the MQTT handler for display command topics.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id, ok := mqtt.EntryIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}

	cmd, err := ParseCommand(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.Apply(ctx, id, cmd)
}

// Apply sends a command to the display for entry id.
func (b *Bridge) Apply(ctx context.Context, id string, cmd Command) error {
	md, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDisplay, id)
	}

	if cmd.Brightness != nil {
		if err := md.display.SetBrightness(ctx, *cmd.Brightness); err != nil {
			return fmt.Errorf("setting brightness: %w", err)
		}
	}
	if cmd.Plugin != nil {
		if err := md.display.SetPlugin(ctx, *cmd.Plugin); err != nil {
			return fmt.Errorf("setting plugin: %w", err)
		}
	}
	if cmd.Persist != nil && *cmd.Persist {
		if err := md.display.Persist(ctx); err != nil {
			return fmt.Errorf("persisting plugin: %w", err)
		}
	}

	b.logger.Debug("display command applied", "entry_id", id)
	return nil
}
