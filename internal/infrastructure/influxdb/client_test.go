package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/influxdb"
)

// fakeInflux answers pings and captures line protocol posted to the write endpoint.
func fakeInflux(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()

	writes := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/write") && r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, writes
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "obegraensad",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func waitForWrite(t *testing.T, writes <-chan string) string {
	t.Helper()
	select {
	case body := <-writes:
		return body
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
		return ""
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := influxdb.Connect(ctx, testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteDisplayState(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteDisplayState("entry-1", "192.168.5.60", 128, 3)
	client.Flush()

	body := waitForWrite(t, writes)
	for _, want := range []string{"obegraensad_display", "entry_id=entry-1", "host=192.168.5.60", "brightness=128i", "plugin=3i"} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol %q missing %q", body, want)
		}
	}
}

func TestWriteProbeResult(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	client.WriteProbeResult("192.168.5.61", false, 1500*time.Millisecond)
	client.Flush()

	body := waitForWrite(t, writes)
	for _, want := range []string{"obegraensad_probe", "result=cannot_connect", "duration_ms=1500i"} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol %q missing %q", body, want)
		}
	}
}

func TestClose(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close() = %v, want ErrNotConnected", err)
	}

	// Writes and a second Close after shutdown are no-ops.
	client.WriteDisplayState("entry-1", "h", 1, 1)
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var client *influxdb.Client

	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
	client.WriteDisplayState("e", "h", 1, 1)
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
