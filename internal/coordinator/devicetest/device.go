// Package devicetest provides an in-process fake OBEGRÄNSAD display for
// tests. It speaks the firmware's WebSocket protocol on an httptest server.
package devicetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Device is a fake display. Every client that connects receives the
// current info frame straight away; commands from clients are recorded.
type Device struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	writeMu sync.Mutex

	mu       sync.Mutex
	info     map[string]any
	silent   bool
	conns    map[*websocket.Conn]struct{}
	accepted int

	commandCh chan map[string]any
}

// DefaultInfo is a typical info frame.
func DefaultInfo() map[string]any {
	return map[string]any{
		"event":          "info",
		"brightness":     255,
		"plugin":         3,
		"rotation":       0,
		"status":         "NONE",
		"scheduleActive": false,
		"plugins": []map[string]any{
			{"id": 1, "name": "Draw"},
			{"id": 3, "name": "Clock"},
		},
	}
}

// New starts a fake display serving DefaultInfo on /ws.
func New(t *testing.T) *Device {
	t.Helper()

	d := &Device{
		info:      DefaultInfo(),
		conns:     make(map[*websocket.Conn]struct{}),
		commandCh: make(chan map[string]any, 64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.handle)
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.Close)

	return d
}

// Host returns host:port for the fake display.
func (d *Device) Host() string {
	return strings.TrimPrefix(d.server.URL, "http://")
}

// SetInfo replaces the info frame sent to new and existing clients.
func (d *Device) SetInfo(info map[string]any) {
	d.mu.Lock()
	d.info = info
	d.mu.Unlock()
	d.broadcast()
}

// SetSilent stops the device from pushing info frames on connect.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	d.silent = silent
	d.mu.Unlock()
}

// Commands receives every command frame sent by clients.
func (d *Device) Commands() <-chan map[string]any {
	return d.commandCh
}

// Accepted returns how many WebSocket connections have been accepted.
func (d *Device) Accepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// DropConnections closes every open client socket.
func (d *Device) DropConnections() {
	d.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Close shuts the server and all connections down.
func (d *Device) Close() {
	d.DropConnections()
	d.server.Close()
}

func (d *Device) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	d.mu.Lock()
	d.conns[conn] = struct{}{}
	d.accepted++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.conns, conn)
		d.mu.Unlock()
		conn.Close()
	}()

	d.push(conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd map[string]any
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		select {
		case d.commandCh <- cmd:
		default:
		}
	}
}

func (d *Device) push(conn *websocket.Conn) {
	d.mu.Lock()
	info, silent := d.info, d.silent
	d.mu.Unlock()
	if silent || info == nil {
		return
	}

	payload, _ := json.Marshal(info) //nolint:errchkjson // Test fixture

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, payload) //nolint:errcheck // Client may have gone
}

func (d *Device) broadcast() {
	d.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		d.push(c)
	}
}
