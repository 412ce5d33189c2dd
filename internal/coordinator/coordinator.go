package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection defaults.
const (
	DefaultPort        = 80
	DefaultPath        = "/ws"
	DefaultDialTimeout = 5 * time.Second

	// writeTimeout bounds a command write when ctx has no deadline.
	writeTimeout = 5 * time.Second

	// maxMessageSize caps a single frame from the display.
	maxMessageSize = 64 * 1024
)

// Firmware event names.
const (
	eventInfo          = "info"
	eventBrightness    = "brightness"
	eventPlugin        = "plugin"
	eventPersistPlugin = "persist-plugin"
)

// Logger is the logging surface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Coordinator. Zero values use the defaults.
type Options struct {
	Port        int
	Path        string
	DialTimeout time.Duration

	// InitialBackoff and MaxBackoff bound reconnect delays.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnState is called from the read loop for every state update.
	OnState func(State)

	Logger Logger
}

// Coordinator owns the WebSocket connection to one OBEGRÄNSAD display.
//
// New starts a background loop that dials the display, reads its pushed
// state and redials with backoff when the socket drops. All methods are
// safe for concurrent use.
type Coordinator struct {
	host   string
	url    string
	opts   Options
	dialer *websocket.Dialer
	logger Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.RWMutex
	conn    *websocket.Conn
	state   []byte // raw info frame, decoded fresh per read
	lastErr error

	writeMu sync.Mutex

	shutdownOnce sync.Once
}

// New creates a coordinator for the display at host and starts connecting.
// host may carry an explicit port ("192.168.5.60:8080").
func New(host string, opts Options) *Coordinator {
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		host:    host,
		url:     DeviceURL(host, opts.Port, opts.Path),
		opts:    opts,
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		ready:   make(chan struct{}),
	}

	go c.run(NewBackoff(opts.InitialBackoff, opts.MaxBackoff))
	return c
}

// DeviceURL builds the display's WebSocket URL.
func DeviceURL(host string, port int, path string) string {
	hostPort := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		bare := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		hostPort = net.JoinHostPort(bare, strconv.Itoa(port))
	}
	u := url.URL{Scheme: "ws", Host: hostPort, Path: path}
	return u.String()
}

// Host returns the host the coordinator was created for.
func (c *Coordinator) Host() string { return c.host }

// URL returns the WebSocket URL being dialled.
func (c *Coordinator) URL() string { return c.url }

// Ready is closed once the first state frame has been received.
func (c *Coordinator) Ready() <-chan struct{} { return c.ready }

// Connected reports whether the socket is currently open.
func (c *Coordinator) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Refresh returns the latest state reported by the display.
//
// If nothing has been received yet it waits for the first frame, bounded
// by ctx. Errors are ErrClosed, or ErrNotConnected / ErrNoState wrapping
// the context error and the last dial failure.
func (c *Coordinator) Refresh(ctx context.Context) (State, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	raw := c.state
	c.mu.RUnlock()

	state, err := decodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return state, nil
}

func (c *Coordinator) waitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	default:
	}

	select {
	case <-c.ready:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		c.mu.RLock()
		connected, lastErr := c.conn != nil, c.lastErr
		c.mu.RUnlock()
		if !connected {
			if lastErr != nil {
				return fmt.Errorf("%w: %w (last error: %w)", ErrNotConnected, ctx.Err(), lastErr)
			}
			return fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrNoState, ctx.Err())
	}
}

// SetBrightness sets display brightness (0-255).
func (c *Coordinator) SetBrightness(ctx context.Context, brightness int) error {
	if brightness < 0 || brightness > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidBrightness, brightness)
	}
	return c.send(ctx, map[string]any{"event": eventBrightness, "brightness": brightness})
}

// SetPlugin switches the active plugin.
func (c *Coordinator) SetPlugin(ctx context.Context, plugin int) error {
	if plugin < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPlugin, plugin)
	}
	return c.send(ctx, map[string]any{"event": eventPlugin, "plugin": plugin})
}

// Persist asks the display to keep the active plugin across reboots.
func (c *Coordinator) Persist(ctx context.Context) error {
	return c.send(ctx, map[string]any{"event": eventPersistPlugin})
}

func (c *Coordinator) send(ctx context.Context, frame map[string]any) error {
	if c.isClosed() {
		return ErrClosed
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	//nolint:errcheck // Best-effort deadline; write error caught below
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// Shutdown stops the connection loop and closes the socket. It waits for
// the loop to exit, bounded by ctx. Safe to call more than once.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			c.writeMu.Lock()
			//nolint:errcheck // Best-effort close frame
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			conn.Close()
		}
	})

	select {
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for coordinator shutdown: %w", ctx.Err())
	}
}

func (c *Coordinator) isClosed() bool {
	return c.ctx.Err() != nil
}

// run dials, reads until the socket drops, and redials with backoff.
func (c *Coordinator) run(backoff *Backoff) {
	defer close(c.stopped)

	for {
		conn, err := c.dial()
		if err == nil {
			backoff.Reset()
			c.logger.Debug("display connected", "host", c.host)
			err = c.readLoop(conn)
			c.detach(conn)
		}

		if c.isClosed() {
			return
		}

		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()

		delay := backoff.Next()
		c.logger.Warn("display connection failed, retrying",
			"host", c.host,
			"error", err,
			"retry_in", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Coordinator) dial() (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialling %s: %w", c.url, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		conn.Close()
		return nil, ErrClosed
	}
	c.conn = conn
	c.lastErr = nil
	return conn, nil
}

func (c *Coordinator) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Coordinator) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("display closed the connection")
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		c.handleFrame(message)
	}
}

func (c *Coordinator) handleFrame(message []byte) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.logger.Debug("ignoring malformed frame", "host", c.host, "error", err)
		return
	}
	if envelope.Event != eventInfo && envelope.Event != "" {
		return
	}

	state, err := decodeState(message)
	if err != nil || len(state) == 0 {
		return
	}

	c.mu.Lock()
	c.state = message
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })

	if c.opts.OnState != nil {
		c.opts.OnState(state)
	}
}
