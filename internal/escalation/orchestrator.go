package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/internal/gateway"
	"github.com/Geravant/sinain-hud/pkg/models"
)

const (
	robotGlyph      = "🤖 "
	responseCharCap = 2000
)

// Counters is a snapshot of the orchestrator's delivery statistics.
type Counters struct {
	TotalEscalations int64 `json:"totalEscalations"`
	TotalResponses   int64 `json:"totalResponses"`
	TotalErrors      int64 `json:"totalErrors"`
	TotalNoReply     int64 `json:"totalNoReply"`
	LastEscalationTS int64 `json:"lastEscalationTs"`
	LastResponseTS   int64 `json:"lastResponseTs"`
	LastErrorTS      int64 `json:"lastErrorTs"`
}

// Orchestrator owns the escalation decision state and both delivery
// transports. The tick engine hands it every finished tick; the overlay
// hands it direct user messages.
type Orchestrator struct {
	mu                  sync.Mutex
	mode                string
	cooldownMs          int64
	lastEscalationTS    int64
	lastEscalatedDigest string
	counters            Counters

	rpc        *gateway.Client
	hook       *gateway.HookClient
	sessionKey string

	feed    *buffers.FeedBuffer
	publish func(models.FeedItem)
	logger  *slog.Logger
}

// Options wires an orchestrator.
type Options struct {
	Mode       string
	CooldownMs int64
	RPC        *gateway.Client
	Hook       *gateway.HookClient
	SessionKey string
	Feed       *buffers.FeedBuffer
	// Publish broadcasts a stored feed item to connected overlays.
	Publish func(models.FeedItem)
	Logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator. Publish may be nil when no
// overlay fan-out is attached.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		mode:       opts.Mode,
		cooldownMs: opts.CooldownMs,
		rpc:        opts.RPC,
		hook:       opts.Hook,
		sessionKey: opts.SessionKey,
		feed:       opts.Feed,
		publish:    opts.Publish,
		logger:     logger.With("component", "escalation"),
	}
}

// Mode returns the current escalation mode.
func (o *Orchestrator) Mode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// SetMode hot-swaps the escalation mode. Crossing the off boundary
// brings the RPC socket up or tears it down.
func (o *Orchestrator) SetMode(mode string) {
	o.mu.Lock()
	prev := o.mode
	o.mode = mode
	o.mu.Unlock()
	if prev == mode || o.rpc == nil {
		return
	}
	if prev == "off" && mode != "off" {
		o.rpc.Start()
	} else if mode == "off" {
		o.rpc.Stop()
	}
}

// Counters returns a copy of the delivery statistics.
func (o *Orchestrator) Counters() Counters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters
}

// OnTick scores one finished tick and, when the gate passes, delivers
// the escalation asynchronously. Returns the decision for tracing.
func (o *Orchestrator) OnTick(entry models.AgentEntry, window models.ContextWindow) Decision {
	score := CalculateScore(entry.Digest, window)
	now := time.Now().UnixMilli()

	o.mu.Lock()
	decision := Decide(GateInput{
		Mode:                o.mode,
		Now:                 now,
		LastEscalationTS:    o.lastEscalationTS,
		CooldownMs:          o.cooldownMs,
		HUD:                 entry.HUD,
		Digest:              entry.Digest,
		LastEscalatedDigest: o.lastEscalatedDigest,
		Score:               score,
	})
	if !decision.Escalate {
		o.mu.Unlock()
		return decision
	}
	// Cooldown starts at decision time, before any delivery I/O.
	o.lastEscalationTS = now
	o.lastEscalatedDigest = entry.Digest
	o.counters.TotalEscalations++
	o.counters.LastEscalationTS = now
	mode := o.mode
	o.mu.Unlock()

	message := BuildMessage(mode, entry, window)
	idemKey := fmt.Sprintf("hud-%d-%d", entry.ID, now)
	go o.deliver(context.Background(), message, idemKey, mode, entry.Digest)
	return decision
}

// SendDirect routes an overlay-originated user message through the same
// transports, skipping the scorer entirely.
func (o *Orchestrator) SendDirect(text string) {
	idemKey := fmt.Sprintf("direct-%d", time.Now().UnixMilli())
	go o.deliver(context.Background(), text, idemKey, o.Mode(), "")
}

// deliver walks the transport chain: authenticated RPC first, HTTP hook
// on RPC exception or when the socket is down.
func (o *Orchestrator) deliver(ctx context.Context, message, idemKey, mode, digest string) {
	if o.rpc != nil && o.rpc.IsConnected() {
		result, err := o.rpc.AgentWait(ctx, message, idemKey, o.sessionKey, gateway.DefaultWaitTimeout)
		switch {
		case err == nil:
			o.handleResult(result, mode, digest)
			return
		case errors.Is(err, gateway.ErrTimeout):
			// The assistant may still be processing; never retried.
			o.logger.Warn("escalation wait timed out", "idemKey", idemKey)
			o.markNoReply()
			return
		default:
			var rpcErr *gateway.RPCError
			if errors.As(err, &rpcErr) {
				o.pushErrNote(fmt.Sprintf("[err] assistant: %s", rpcErr.Message))
				o.markError()
				return
			}
			o.pushErrNote(fmt.Sprintf("[err] gateway: %v", err))
			o.markError()
			// Fall through to the HTTP hook.
		}
	}

	if o.hook.Available() {
		if err := o.hook.Post(ctx, message, o.sessionKey); err != nil {
			o.logger.Warn("hook delivery failed", "error", err)
			o.markError()
		}
		return
	}
	o.logger.Debug("no transport available, escalation skipped", "idemKey", idemKey)
}

func (o *Orchestrator) handleResult(result *gateway.AgentWaitResult, mode, digest string) {
	var parts []string
	for _, p := range result.Payloads {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	text := ""
	if len(parts) > 0 {
		text = joinLines(parts)
	}

	if text == "" {
		o.markNoReply()
		if (mode == "focus" || mode == "rich") && digest != "" {
			o.pushAgentItem(digest)
		} else {
			o.logger.Debug("assistant returned no payloads")
		}
		return
	}

	o.mu.Lock()
	o.counters.TotalResponses++
	o.counters.LastResponseTS = time.Now().UnixMilli()
	o.mu.Unlock()
	o.pushAgentItem(text)
}

func (o *Orchestrator) pushAgentItem(text string) {
	body := robotGlyph + text
	if len(body) > responseCharCap {
		body = body[:responseCharCap]
	}
	item, err := o.feed.Push(models.FeedItem{
		Source:   models.SourceAgent,
		Channel:  models.ChannelAgent,
		Priority: models.PriorityHigh,
		Text:     body,
	})
	if err != nil {
		return
	}
	if o.publish != nil {
		o.publish(item)
	}
}

func (o *Orchestrator) pushErrNote(text string) {
	item, err := o.feed.Push(models.FeedItem{
		Source:   models.SourceSystem,
		Channel:  models.ChannelStream,
		Priority: models.PriorityNormal,
		Text:     text,
	})
	if err != nil {
		return
	}
	if o.publish != nil {
		o.publish(item)
	}
}

func (o *Orchestrator) markError() {
	o.mu.Lock()
	o.counters.TotalErrors++
	o.counters.LastErrorTS = time.Now().UnixMilli()
	o.mu.Unlock()
}

func (o *Orchestrator) markNoReply() {
	o.mu.Lock()
	o.counters.TotalNoReply++
	o.mu.Unlock()
}

func joinLines(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}
