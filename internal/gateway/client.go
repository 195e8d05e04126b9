// Package gateway maintains the persistent RPC connection to the
// assistant gateway, with challenge-response authentication, correlated
// request/response frames, and automatic reconnect.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Geravant/sinain-hud/internal/backoff"
)

const (
	protocolVersion  = 3
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second

	// DefaultWaitTimeout bounds agent.wait requests. A timeout is not a
	// failure of the assistant; it may still be processing.
	DefaultWaitTimeout = 60 * time.Second
)

// ErrTimeout is returned when the gateway does not answer a request in
// time. Callers must not retry on it.
var ErrTimeout = errors.New("gateway: request timed out")

// ErrNotConnected is returned when no authenticated socket is available.
var ErrNotConnected = errors.New("gateway: not connected")

// State tracks the connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config configures the gateway client.
type Config struct {
	URL   string
	Token string
	// ClientID identifies this process to the gateway.
	ClientID string
	// Version is reported in the connect handshake.
	Version string
}

// Client is the persistent gateway connection.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32

	reqCounter atomic.Int64
	pendingMu  sync.Mutex
	pending    map[string]chan *Frame

	// onInbound receives assistant-initiated text pushes.
	onInbound func(text string)
	// onStateChange observes connection transitions.
	onStateChange func(State)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a gateway client. It does not connect until Start.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sinain-core"
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With("component", "gateway"),
		pending: make(map[string]chan *Frame),
	}
}

// OnInbound sets the handler for assistant-initiated pushes.
func (c *Client) OnInbound(fn func(text string)) {
	c.mu.Lock()
	c.onInbound = fn
	c.mu.Unlock()
}

// OnStateChange sets the observer for connection transitions.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the socket is up and authenticated.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev == s {
		return
	}
	c.mu.Lock()
	cb := c.onStateChange
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Start launches the connect/reconnect loop. It returns immediately;
// the client keeps the socket alive until Stop.
func (c *Client) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.runLoop(ctx)
}

// Stop tears down the socket and halts reconnection.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.closeConn()
	if done != nil {
		<-done
	}
	c.setState(StateDisconnected)
}

func (c *Client) runLoop(ctx context.Context) {
	defer close(c.done)
	policy := backoff.ReconnectPolicy()
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.connect(ctx); err != nil {
			attempt++
			c.logger.Warn("gateway connect failed", "error", err, "attempt", attempt)
			if backoff.Sleep(ctx, policy, attempt) != nil {
				return
			}
			continue
		}
		attempt = 0
		c.readLoop(ctx)
		c.setState(StateDisconnected)
		c.failPending(ErrNotConnected)
		if ctx.Err() != nil {
			return
		}
		c.logger.Info("gateway connection lost, reconnecting")
		if backoff.Sleep(ctx, policy, 1) != nil {
			return
		}
	}
}

// connect dials the gateway, waits for the challenge, and authenticates.
func (c *Client) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	challenge, err := c.readFrame(conn, handshakeTimeout)
	if err != nil || challenge.EventName() != "connect.challenge" {
		c.closeConn()
		if err == nil {
			err = fmt.Errorf("expected connect.challenge, got %q", challenge.EventName())
		}
		return fmt.Errorf("challenge: %w", err)
	}

	reqID := c.nextReqID()
	connectReq := &Frame{
		Type:   "req",
		ID:     reqID,
		Method: "connect",
		Params: connectParams{
			MinProtocol: protocolVersion,
			MaxProtocol: protocolVersion,
			Client:      connectClientInfo{ID: c.cfg.ClientID, Version: c.cfg.Version, Mode: "backend"},
			Auth:        connectAuth{Token: c.cfg.Token},
		},
	}
	if err := c.writeFrame(connectReq); err != nil {
		c.closeConn()
		return fmt.Errorf("send connect: %w", err)
	}

	res, err := c.readFrame(conn, handshakeTimeout)
	if err != nil {
		c.closeConn()
		return fmt.Errorf("connect response: %w", err)
	}
	if res.Error != nil {
		c.closeConn()
		return fmt.Errorf("connect rejected: %w", res.Error)
	}
	if res.OK != nil && !*res.OK {
		c.closeConn()
		return errors.New("connect rejected")
	}

	c.setState(StateConnected)
	c.logger.Info("gateway connected", "url", c.cfg.URL)
	return nil
}

func (c *Client) readFrame(conn *websocket.Conn, timeout time.Duration) (*Frame, error) {
	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	return &f, nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil || ctx.Err() != nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("gateway read error", "error", err)
			}
			c.closeConn()
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("gateway frame parse error", "error", err)
			continue
		}
		c.handleFrame(&f)
	}
}

func (c *Client) handleFrame(f *Frame) {
	switch f.Type {
	case "res":
		c.pendingMu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- f:
			default:
			}
		}
	case "event":
		if f.EventName() != "agent" {
			return
		}
		var ev inboundAgentEvent
		raw := f.Payload
		if raw == nil {
			if data, err := json.Marshal(f.Params); err == nil {
				raw = data
			}
		}
		if raw != nil {
			json.Unmarshal(raw, &ev)
		}
		if ev.Text == "" {
			return
		}
		c.mu.Lock()
		cb := c.onInbound
		c.mu.Unlock()
		if cb != nil {
			cb(ev.Text)
		}
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		select {
		case ch <- &Frame{Type: "res", ID: id, Error: &RPCError{Code: "closed", Message: err.Error()}}:
		default:
		}
	}
	c.pendingMu.Unlock()
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
}

func (c *Client) nextReqID() string {
	return fmt.Sprintf("%d", c.reqCounter.Add(1))
}

func (c *Client) writeFrame(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// request sends one correlated request and waits for its response or
// the timeout. ErrTimeout means the gateway may still be processing.
func (c *Client) request(ctx context.Context, method string, params any, timeout time.Duration) (*Frame, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	reqID := c.nextReqID()
	ch := make(chan *Frame, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	if err := c.writeFrame(&Frame{Type: "req", ID: reqID, Method: method, Params: params}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AgentWait delivers a message and blocks until the assistant responds
// or the wait times out. An *RPCError return means the gateway answered
// with an error object; other errors are transport failures.
func (c *Client) AgentWait(ctx context.Context, message, idemKey, sessionKey string, timeout time.Duration) (*AgentWaitResult, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	params := agentParams{
		Message:        message,
		IdempotencyKey: idemKey,
		SessionKey:     sessionKey,
		TimeoutMs:      timeout.Milliseconds(),
	}
	res, err := c.request(ctx, "agent.wait", params, timeout)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	var result AgentWaitResult
	if len(res.Result) > 0 {
		if err := json.Unmarshal(res.Result, &result); err != nil {
			return nil, fmt.Errorf("parse agent.wait result: %w", err)
		}
	}
	return &result, nil
}

// Agent delivers a message without waiting for assistant output.
func (c *Client) Agent(ctx context.Context, message, idemKey, sessionKey string) error {
	params := agentParams{Message: message, IdempotencyKey: idemKey, SessionKey: sessionKey}
	res, err := c.request(ctx, "agent", params, handshakeTimeout)
	if err != nil {
		return err
	}
	if res.Error != nil {
		return res.Error
	}
	return nil
}
