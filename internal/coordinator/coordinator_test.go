package coordinator_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator"
	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator/devicetest"
)

func fastOptions() coordinator.Options {
	return coordinator.Options{
		DialTimeout:    time.Second,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}
}

func shutdown(t *testing.T, c *coordinator.Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func waitReady(t *testing.T, c *coordinator.Coordinator) {
	t.Helper()
	select {
	case <-c.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("coordinator never became ready")
	}
}

// closedPortHost returns a host:port nothing is listening on.
func closedPortHost(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestDeviceURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		path string
		want string
	}{
		{"192.168.5.60", 80, "/ws", "ws://192.168.5.60:80/ws"},
		{"192.168.5.60:8080", 80, "/ws", "ws://192.168.5.60:8080/ws"},
		{"obegraensad.local", 81, "/socket", "ws://obegraensad.local:81/socket"},
		{"fe80::1", 80, "/ws", "ws://[fe80::1]:80/ws"},
		{"[::1]", 80, "/ws", "ws://[::1]:80/ws"},
		{"[fe80::1]:8080", 80, "/ws", "ws://[fe80::1]:8080/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := coordinator.DeviceURL(tt.host, tt.port, tt.path); got != tt.want {
				t.Errorf("DeviceURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	device := devicetest.New(t)
	c := coordinator.New(device.Host(), fastOptions())
	defer shutdown(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	state, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !state.Has(coordinator.KeyBrightness) {
		t.Fatalf("state missing brightness: %v", state)
	}
	if b, ok := state.Brightness(); !ok || b != 255 {
		t.Errorf("Brightness() = %d, %v, want 255", b, ok)
	}
	if p, ok := state.Plugin(); !ok || p != 3 {
		t.Errorf("Plugin() = %d, %v, want 3", p, ok)
	}
	if state.Has("event") {
		t.Error("event discriminator leaked into state")
	}
	if !c.Connected() {
		t.Error("Connected() = false after state received")
	}
}

func TestRefreshReturnsIndependentCopies(t *testing.T) {
	device := devicetest.New(t)
	c := coordinator.New(device.Host(), fastOptions())
	defer shutdown(t, c)
	waitReady(t, c)

	first, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	first["brightness"] = float64(1)

	second, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if b, _ := second.Brightness(); b != 255 {
		t.Errorf("Brightness() = %d after mutating an earlier snapshot", b)
	}
}

func TestStateUpdates(t *testing.T) {
	device := devicetest.New(t)

	updates := make(chan coordinator.State, 4)
	opts := fastOptions()
	opts.OnState = func(s coordinator.State) { updates <- s }

	c := coordinator.New(device.Host(), opts)
	defer shutdown(t, c)
	waitReady(t, c)
	<-updates

	info := devicetest.DefaultInfo()
	info["brightness"] = 42
	device.SetInfo(info)

	select {
	case s := <-updates:
		if b, _ := s.Brightness(); b != 42 {
			t.Errorf("pushed brightness = %d, want 42", b)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("state update not delivered")
	}
}

func TestRefreshUnreachable(t *testing.T) {
	c := coordinator.New(closedPortHost(t), fastOptions())
	defer shutdown(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.Refresh(ctx)
	if !errors.Is(err, coordinator.ErrNotConnected) {
		t.Errorf("Refresh() error = %v, want ErrNotConnected", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Refresh() error = %v, want it to wrap DeadlineExceeded", err)
	}
}

func TestRefreshSilentDevice(t *testing.T) {
	device := devicetest.New(t)
	device.SetSilent(true)

	c := coordinator.New(device.Host(), fastOptions())
	defer shutdown(t, c)

	deadline := time.Now().Add(3 * time.Second)
	for !c.Connected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := c.Refresh(ctx); !errors.Is(err, coordinator.ErrNoState) {
		t.Errorf("Refresh() error = %v, want ErrNoState", err)
	}
}

func TestCommands(t *testing.T) {
	device := devicetest.New(t)
	c := coordinator.New(device.Host(), fastOptions())
	defer shutdown(t, c)
	waitReady(t, c)

	ctx := context.Background()
	tests := []struct {
		name  string
		send  func() error
		event string
		key   string
		value float64
	}{
		{"brightness", func() error { return c.SetBrightness(ctx, 128) }, "brightness", "brightness", 128},
		{"plugin", func() error { return c.SetPlugin(ctx, 4) }, "plugin", "plugin", 4},
		{"persist", func() error { return c.Persist(ctx) }, "persist-plugin", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatalf("send error = %v", err)
			}
			select {
			case cmd := <-device.Commands():
				if cmd["event"] != tt.event {
					t.Errorf("event = %v, want %q", cmd["event"], tt.event)
				}
				if tt.key != "" && cmd[tt.key] != tt.value {
					t.Errorf("%s = %v, want %v", tt.key, cmd[tt.key], tt.value)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("command not received")
			}
		})
	}
}

func TestCommandValidation(t *testing.T) {
	c := coordinator.New(closedPortHost(t), fastOptions())
	defer shutdown(t, c)
	ctx := context.Background()

	if err := c.SetBrightness(ctx, 256); !errors.Is(err, coordinator.ErrInvalidBrightness) {
		t.Errorf("SetBrightness(256) error = %v", err)
	}
	if err := c.SetBrightness(ctx, -1); !errors.Is(err, coordinator.ErrInvalidBrightness) {
		t.Errorf("SetBrightness(-1) error = %v", err)
	}
	if err := c.SetPlugin(ctx, -1); !errors.Is(err, coordinator.ErrInvalidPlugin) {
		t.Errorf("SetPlugin(-1) error = %v", err)
	}
	if err := c.Persist(ctx); !errors.Is(err, coordinator.ErrNotConnected) {
		t.Errorf("Persist() while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestReconnect(t *testing.T) {
	device := devicetest.New(t)
	c := coordinator.New(device.Host(), fastOptions())
	defer shutdown(t, c)
	waitReady(t, c)

	device.DropConnections()

	deadline := time.Now().Add(3 * time.Second)
	for device.Accepted() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if device.Accepted() < 2 {
		t.Fatalf("accepted = %d, want a reconnect", device.Accepted())
	}
}

func TestShutdown(t *testing.T) {
	device := devicetest.New(t)
	c := coordinator.New(device.Host(), fastOptions())
	waitReady(t, c)

	shutdown(t, c)
	shutdown(t, c) // idempotent

	if _, err := c.Refresh(context.Background()); !errors.Is(err, coordinator.ErrClosed) {
		t.Errorf("Refresh() after Shutdown() error = %v, want ErrClosed", err)
	}
	if err := c.SetBrightness(context.Background(), 10); !errors.Is(err, coordinator.ErrClosed) {
		t.Errorf("SetBrightness() after Shutdown() error = %v, want ErrClosed", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after Shutdown()")
	}
}

func TestShutdownWhileDialling(t *testing.T) {
	c := coordinator.New(closedPortHost(t), fastOptions())
	shutdown(t, c)
}
