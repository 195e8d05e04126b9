// Package overlay is the push socket the HUD overlay clients connect
// to. The server owns the client set, the heartbeat, the feed replay
// buffer for late joiners, and the spawn-task lifecycle buffer.
package overlay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Geravant/sinain-hud/pkg/models"
)

const (
	heartbeatInterval = 10 * time.Second
	writeWait         = 10 * time.Second
	sendQueueSize     = 64

	// closeHeartbeatDead is sent to clients that missed two heartbeats.
	closeHeartbeatDead = 4000
)

// CaptureController drives the external capture collaborators in
// response to overlay commands.
type CaptureController interface {
	ToggleAudio()
	ToggleScreen()
	SwitchDevice()
	AudioState() string  // "active" or "muted"
	ScreenState() string // "active" or "off"
}

// DirectSender routes overlay user messages to the assistant.
type DirectSender interface {
	SendDirect(text string)
}

// ProfilingSink receives overlay-side profiling reports.
type ProfilingSink interface {
	ReportOverlay(data map[string]any)
}

// Options wires an overlay server.
type Options struct {
	Capture CaptureController
	Sender  DirectSender
	Sink    ProfilingSink
	// GatewayState reports the assistant connection for status frames.
	GatewayState func() string
	Logger       *slog.Logger
}

// Server fans out feed items, status, and spawn-task updates to every
// connected overlay.
type Server struct {
	upgrader websocket.Upgrader
	capture  CaptureController
	sender   DirectSender
	sink     ProfilingSink
	gwState  func() string
	logger   *slog.Logger

	replay *replayBuffer
	spawn  *spawnBuffer

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer creates an overlay server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		capture: opts.Capture,
		sender:  opts.Sender,
		sink:    opts.Sink,
		gwState: opts.GatewayState,
		logger:  logger.With("component", "overlay"),
		replay:  newReplayBuffer(),
		spawn:   newSpawnBuffer(),
		clients: make(map[*client]struct{}),
	}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	pingCh chan struct{}

	mu    sync.Mutex
	alive bool

	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// swapAlive sets alive=false and returns the prior value.
func (c *client) swapAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.alive
	c.alive = false
	return was
}

func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		c.conn.Close()
		close(c.done)
	})
}

// HandleWS upgrades one overlay connection and runs it until it drops.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("overlay upgrade failed", "error", err)
		return
	}
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		pingCh: make(chan struct{}, 1),
		alive:  true,
		done:   make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	// Connection-change broadcast goes to the already-connected clients
	// only; the joiner gets exactly one status, its direct snapshot.
	s.mu.Lock()
	wasDisconnected := len(s.clients) == 0
	s.mu.Unlock()
	if wasDisconnected {
		s.BroadcastStatus()
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("overlay connected", "remote", r.RemoteAddr)

	go c.writeLoop()

	// Initial snapshot, then ordered replay for the late joiner.
	c.enqueue(marshal(s.statusMessage()))
	for _, item := range s.replay.Snapshot() {
		c.enqueue(marshal(NewFeedMessage(item)))
	}
	s.spawn.Prune()
	for _, task := range s.spawn.Snapshot() {
		c.enqueue(marshal(NewSpawnTaskMessage(task)))
	}

	s.readLoop(c)
	s.drop(c, websocket.CloseNormalClosure, "")
}

func (c *client) enqueue(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Queue full; the heartbeat will reap the client if it stays
		// unresponsive.
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.pingCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.markAlive()

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("overlay inbound parse error", "error", err)
			continue
		}
		s.handleInbound(c, msg)
	}
}

func (s *Server) handleInbound(c *client, msg inboundMessage) {
	switch msg.Type {
	case "pong":
		// markAlive already ran.
	case "message":
		if s.sender != nil && msg.Text != "" {
			s.sender.SendDirect(msg.Text)
		}
	case "command":
		s.handleCommand(msg.Action)
	case "profiling":
		if s.sink != nil {
			s.sink.ReportOverlay(map[string]any{
				"rssMb":   msg.RSSMb,
				"uptimeS": msg.Uptime,
				"ts":      msg.TS,
			})
		}
	default:
		s.logger.Debug("overlay unknown message type", "type", msg.Type)
	}
}

func (s *Server) handleCommand(action string) {
	if s.capture == nil {
		s.logger.Debug("overlay command with no capture controller", "action", action)
		return
	}
	switch action {
	case "toggle_audio":
		s.capture.ToggleAudio()
	case "toggle_screen":
		s.capture.ToggleScreen()
	case "switch_device":
		s.capture.SwitchDevice()
	default:
		s.logger.Debug("overlay command ignored", "action", action)
		return
	}
	s.BroadcastStatus()
}

// Run drives the heartbeat until ctx is done: clients that missed the
// prior interval are closed with 4000, the rest get both a protocol
// ping and an app-level ping frame.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.heartbeat()
		}
	}
}

func (s *Server) heartbeat() {
	ping := marshal(PingMessage{Type: "ping", TS: time.Now().UnixMilli()})
	for _, c := range s.snapshot() {
		if !c.swapAlive() {
			s.logger.Info("overlay heartbeat missed, closing")
			s.drop(c, closeHeartbeatDead, "heartbeat timeout")
			continue
		}
		select {
		case c.pingCh <- struct{}{}:
		default:
		}
		c.enqueue(ping)
	}
}

func (s *Server) snapshot() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) drop(c *client, code int, reason string) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if present {
		c.close(code, reason)
	}
}

// ClientCount returns how many overlays are connected.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) statusMessage() StatusMessage {
	msg := StatusMessage{Type: "status", Audio: "muted", Screen: "off", Connection: "disconnected"}
	if s.capture != nil {
		msg.Audio = s.capture.AudioState()
		msg.Screen = s.capture.ScreenState()
	}
	if s.gwState != nil {
		msg.Connection = s.gwState()
	}
	return msg
}

// BroadcastFeed appends the item to the replay buffer and fans it out.
func (s *Server) BroadcastFeed(item models.FeedItem) {
	s.replay.Add(item)
	s.broadcast(marshal(NewFeedMessage(item)))
}

// BroadcastStatus fans out a fresh status snapshot.
func (s *Server) BroadcastStatus() {
	s.broadcast(marshal(s.statusMessage()))
}

// BroadcastSpawnTask upserts the task, prunes expired terminal tasks,
// and fans the update out.
func (s *Server) BroadcastSpawnTask(task models.SpawnTask) {
	stored := s.spawn.Upsert(task)
	s.spawn.Prune()
	s.broadcast(marshal(NewSpawnTaskMessage(stored)))
}

func (s *Server) broadcast(data []byte) {
	if data == nil {
		return
	}
	for _, c := range s.snapshot() {
		c.enqueue(data)
	}
}

// Shutdown closes every client with 1001 (going away).
func (s *Server) Shutdown() {
	for _, c := range s.snapshot() {
		s.drop(c, websocket.CloseGoingAway, "shutting down")
	}
}
