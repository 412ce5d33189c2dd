package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator"
	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/mqtt"
)

// fakePublisher records retained publishes and subscriptions.
type fakePublisher struct {
	mu           sync.Mutex
	retained     map[string][]byte
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	subscribeErr error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		retained: make(map[string][]byte),
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retained[topic] = payload
	return nil
}

func (p *fakePublisher) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if p.subscribeErr != nil {
		return p.subscribeErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[topic] = handler
	return nil
}

func (p *fakePublisher) Unsubscribe(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, topic)
	p.unsubscribed = append(p.unsubscribed, topic)
	return nil
}

func (p *fakePublisher) get(topic string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, ok := p.retained[topic]
	return payload, ok
}

func (p *fakePublisher) handler(topic string) mqtt.MessageHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers[topic]
}

// fakeDisplay is a scripted Display.
type fakeDisplay struct {
	mu         sync.Mutex
	connected  bool
	state      coordinator.State
	refreshErr error
	brightness []int
	plugins    []int
	persisted  int
	shutdowns  int
	onState    func(coordinator.State)
}

func (d *fakeDisplay) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *fakeDisplay) Refresh(context.Context) (coordinator.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.refreshErr
}

func (d *fakeDisplay) SetBrightness(_ context.Context, v int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brightness = append(d.brightness, v)
	return nil
}

func (d *fakeDisplay) SetPlugin(_ context.Context, v int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plugins = append(d.plugins, v)
	return nil
}

func (d *fakeDisplay) Persist(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.persisted++
	return nil
}

func (d *fakeDisplay) Shutdown(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdowns++
	return nil
}

type fakeTelemetry struct {
	mu      sync.Mutex
	samples []string
	last    [2]int
}

func (f *fakeTelemetry) WriteDisplayState(entryID, _ string, brightness, plugin int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, entryID)
	f.last = [2]int{brightness, plugin}
}

// displaySet hands out fakeDisplays keyed by entry ID.
type displaySet struct {
	mu       sync.Mutex
	displays map[string]*fakeDisplay
}

func (s *displaySet) factory(e entry.Entry, onState func(coordinator.State)) Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.displays == nil {
		s.displays = make(map[string]*fakeDisplay)
	}
	d := &fakeDisplay{
		connected: true,
		state:     coordinator.State{"brightness": float64(100), "plugin": float64(2)},
		onState:   onState,
	}
	s.displays[e.ID] = d
	return d
}

func (s *displaySet) get(id string) *fakeDisplay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displays[id]
}

func testEntry(id, host string) entry.Entry {
	e := entry.New(host)
	e.ID = id
	return *e
}

func startBridge(t *testing.T, pub Publisher, cfg Config, entries ...entry.Entry) (*Bridge, *displaySet) {
	t.Helper()
	set := &displaySet{}
	b := New(pub, set.factory, cfg)
	if err := b.Start(context.Background(), entries); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return b, set
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"brightness", `{"brightness":128}`, false},
		{"plugin", `{"plugin":4}`, false},
		{"persist", `{"persist":true}`, false},
		{"combined", `{"brightness":10,"plugin":1}`, false},
		{"persist false only", `{"persist":false}`, true},
		{"empty object", `{}`, true},
		{"not json", `brightness=1`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("error = %v, want ErrInvalidCommand", err)
			}
		})
	}
}

func TestBridge_StartSubscribesCommands(t *testing.T) {
	pub := newFakePublisher()
	b, _ := startBridge(t, pub, Config{}, testEntry("e1", "10.0.0.1"), testEntry("e2", "10.0.0.2"))

	if b.DisplayCount() != 2 {
		t.Errorf("DisplayCount() = %d, want 2", b.DisplayCount())
	}
	if pub.handler(mqtt.Topics{}.AllDisplayCommands()) == nil {
		t.Error("command topic not subscribed")
	}
}

func TestBridge_StartSubscribeError(t *testing.T) {
	pub := newFakePublisher()
	pub.subscribeErr = mqtt.ErrNotConnected

	b := New(pub, (&displaySet{}).factory, Config{})
	err := b.Start(context.Background(), nil)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("Start() error = %v, want ErrNotConnected", err)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Errorf("Stop() after failed Start error = %v", err)
	}
}

func TestBridge_StatePublishedAndRecorded(t *testing.T) {
	pub := newFakePublisher()
	tel := &fakeTelemetry{}
	set := &displaySet{}
	b := New(pub, set.factory, Config{})
	b.SetTelemetry(tel)
	if err := b.Start(context.Background(), []entry.Entry{testEntry("e1", "10.0.0.1")}); err != nil {
		t.Fatal(err)
	}
	defer b.Stop(context.Background()) //nolint:errcheck

	set.get("e1").onState(coordinator.State{"brightness": float64(42), "plugin": float64(7)})

	payload, ok := pub.get(mqtt.Topics{}.DisplayState("e1"))
	if !ok {
		t.Fatal("no state published")
	}
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if msg.EntryID != "e1" || msg.Host != "10.0.0.1" || !msg.Online {
		t.Errorf("state message = %+v", msg)
	}
	if v, _ := msg.State.Brightness(); v != 42 {
		t.Errorf("brightness = %d, want 42", v)
	}

	tel.mu.Lock()
	defer tel.mu.Unlock()
	if len(tel.samples) != 1 || tel.last != [2]int{42, 7} {
		t.Errorf("telemetry samples = %v last = %v", tel.samples, tel.last)
	}
}

func TestBridge_StateWithoutBrightnessSkipsTelemetry(t *testing.T) {
	tel := &fakeTelemetry{}
	set := &displaySet{}
	b := New(nil, set.factory, Config{})
	b.SetTelemetry(tel)
	if err := b.Start(context.Background(), []entry.Entry{testEntry("e1", "10.0.0.1")}); err != nil {
		t.Fatal(err)
	}
	defer b.Stop(context.Background()) //nolint:errcheck

	set.get("e1").onState(coordinator.State{"status": "NONE"})

	tel.mu.Lock()
	defer tel.mu.Unlock()
	if len(tel.samples) != 0 {
		t.Errorf("telemetry samples = %v, want none", tel.samples)
	}
}

func TestBridge_PollPublishesState(t *testing.T) {
	pub := newFakePublisher()
	_, _ = startBridge(t, pub, Config{PollInterval: 10 * time.Millisecond, HealthInterval: time.Hour},
		testEntry("e1", "10.0.0.1"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := pub.get(mqtt.Topics{}.DisplayState("e1")); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("poll did not publish state")
}

func TestBridge_PollOfflineDisplay(t *testing.T) {
	pub := newFakePublisher()
	b, set := startBridge(t, pub, Config{}, testEntry("e1", "10.0.0.1"))

	d := set.get("e1")
	d.mu.Lock()
	d.refreshErr = coordinator.ErrNotConnected
	d.mu.Unlock()

	md, _ := b.lookup("e1")
	b.poll(context.Background(), md)

	payload, ok := pub.get(mqtt.Topics{}.DisplayState("e1"))
	if !ok {
		t.Fatal("no state published")
	}
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Online {
		t.Error("Online = true for failed refresh")
	}
}

func TestBridge_HealthCountsOnlineDisplays(t *testing.T) {
	pub := newFakePublisher()
	b, set := startBridge(t, pub, Config{}, testEntry("e1", "10.0.0.1"), testEntry("e2", "10.0.0.2"))

	d := set.get("e2")
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()

	b.publishHealth(context.Background())

	payload, ok := pub.get(mqtt.Topics{}.BridgeHealth())
	if !ok {
		t.Fatal("no health published")
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Displays != 2 || msg.Online != 1 || msg.Status != "online" {
		t.Errorf("health = %+v", msg)
	}
}

func TestBridge_HandleCommand(t *testing.T) {
	pub := newFakePublisher()
	_, set := startBridge(t, pub, Config{}, testEntry("e1", "10.0.0.1"))
	handler := pub.handler(mqtt.Topics{}.AllDisplayCommands())

	err := handler(mqtt.Topics{}.DisplayCommand("e1"), []byte(`{"brightness":200,"plugin":3,"persist":true}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	d := set.get("e1")
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.brightness) != 1 || d.brightness[0] != 200 {
		t.Errorf("brightness calls = %v", d.brightness)
	}
	if len(d.plugins) != 1 || d.plugins[0] != 3 {
		t.Errorf("plugin calls = %v", d.plugins)
	}
	if d.persisted != 1 {
		t.Errorf("persisted = %d, want 1", d.persisted)
	}
}

func TestBridge_HandleCommandErrors(t *testing.T) {
	pub := newFakePublisher()
	_, _ = startBridge(t, pub, Config{}, testEntry("e1", "10.0.0.1"))
	handler := pub.handler(mqtt.Topics{}.AllDisplayCommands())

	tests := []struct {
		name    string
		topic   string
		payload string
		want    error
	}{
		{"unknown display", mqtt.Topics{}.DisplayCommand("nope"), `{"plugin":1}`, ErrUnknownDisplay},
		{"bad payload", mqtt.Topics{}.DisplayCommand("e1"), `{}`, ErrInvalidCommand},
		{"bad topic", "graylogic/other", `{"plugin":1}`, ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBridge_AddRemoveEntry(t *testing.T) {
	pub := newFakePublisher()
	b, set := startBridge(t, pub, Config{})

	e := testEntry("e1", "10.0.0.1")
	b.AddEntry(e)
	b.AddEntry(e)
	if b.DisplayCount() != 1 {
		t.Fatalf("DisplayCount() = %d, want 1", b.DisplayCount())
	}

	d := set.get("e1")
	d.onState(coordinator.State{"brightness": float64(1)})

	b.RemoveEntry(context.Background(), "e1")
	if b.DisplayCount() != 0 {
		t.Errorf("DisplayCount() = %d, want 0", b.DisplayCount())
	}
	if d.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", d.shutdowns)
	}
	if payload, ok := pub.get(mqtt.Topics{}.DisplayState("e1")); !ok || len(payload) != 0 {
		t.Errorf("retained state not cleared: %q", payload)
	}

	b.RemoveEntry(context.Background(), "e1")
}

// gatedDisplay blocks Refresh until release is closed.
type gatedDisplay struct {
	*fakeDisplay
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDisplay) Refresh(ctx context.Context) (coordinator.State, error) {
	close(d.entered)
	<-d.release
	return d.fakeDisplay.Refresh(ctx)
}

func TestBridge_RemoveEntryDuringRefresh(t *testing.T) {
	tests := []struct {
		name       string
		refreshErr error
	}{
		{name: "refresh returns state"},
		{name: "refresh fails after shutdown", refreshErr: coordinator.ErrClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := newFakePublisher()
			tel := &fakeTelemetry{}
			d := &gatedDisplay{
				fakeDisplay: &fakeDisplay{
					connected:  true,
					state:      coordinator.State{"brightness": float64(10)},
					refreshErr: tt.refreshErr,
				},
				entered: make(chan struct{}),
				release: make(chan struct{}),
			}
			factory := func(entry.Entry, func(coordinator.State)) Display { return d }

			b := New(pub, factory, Config{PollInterval: time.Hour, HealthInterval: time.Hour})
			b.SetTelemetry(tel)
			if err := b.Start(context.Background(), []entry.Entry{testEntry("e1", "h")}); err != nil {
				t.Fatal(err)
			}
			defer b.Stop(context.Background()) //nolint:errcheck

			md, _ := b.lookup("e1")
			done := make(chan struct{})
			go func() {
				defer close(done)
				b.poll(context.Background(), md)
			}()

			<-d.entered
			b.RemoveEntry(context.Background(), "e1")
			close(d.release)
			<-done

			if payload, ok := pub.get(mqtt.Topics{}.DisplayState("e1")); !ok || len(payload) != 0 {
				t.Errorf("retained state after removal = %q, want cleared", payload)
			}
			tel.mu.Lock()
			defer tel.mu.Unlock()
			if len(tel.samples) != 0 {
				t.Errorf("telemetry samples after removal = %v, want none", tel.samples)
			}
		})
	}
}

func TestBridge_StopShutsDownDisplays(t *testing.T) {
	pub := newFakePublisher()
	set := &displaySet{}
	b := New(pub, set.factory, Config{})
	if err := b.Start(context.Background(), []entry.Entry{testEntry("e1", "10.0.0.1")}); err != nil {
		t.Fatal(err)
	}

	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if got := set.get("e1").shutdowns; got != 1 {
		t.Errorf("shutdowns = %d, want 1", got)
	}
	if len(pub.unsubscribed) != 1 {
		t.Errorf("unsubscribed = %v", pub.unsubscribed)
	}
	if b.DisplayCount() != 0 {
		t.Errorf("DisplayCount() = %d after Stop", b.DisplayCount())
	}
}

func TestBridge_Apply(t *testing.T) {
	b, set := startBridge(t, nil, Config{}, testEntry("e1", "10.0.0.1"))

	plugin := 9
	if err := b.Apply(context.Background(), "e1", Command{Plugin: &plugin}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := set.get("e1").plugins; len(got) != 1 || got[0] != 9 {
		t.Errorf("plugins = %v", got)
	}

	if err := b.Apply(context.Background(), "missing", Command{Plugin: &plugin}); !errors.Is(err, ErrUnknownDisplay) {
		t.Errorf("Apply(missing) error = %v, want ErrUnknownDisplay", err)
	}
}
