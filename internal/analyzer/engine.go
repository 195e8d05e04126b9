// Package analyzer runs the tick engine: it watches the activity
// buffers, periodically assembles a context window, asks the model
// chain for a HUD line and digest, and hands the outcome to the
// escalation pipeline. Every tick leaves a structured trace.
package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/internal/config"
	"github.com/Geravant/sinain-hud/internal/contextwin"
	"github.com/Geravant/sinain-hud/internal/escalation"
	"github.com/Geravant/sinain-hud/internal/profiling"
	"github.com/Geravant/sinain-hud/internal/situation"
	"github.com/Geravant/sinain-hud/internal/tracing"
	"github.com/Geravant/sinain-hud/pkg/models"
)

// Escalator receives every finished tick.
type Escalator interface {
	OnTick(entry models.AgentEntry, window models.ContextWindow) escalation.Decision
}

// Options wires a tick engine.
type Options struct {
	Config    config.AgentConfig
	Chat      ChatCaller
	Feed      *buffers.FeedBuffer
	Sense     *buffers.SenseBuffer
	Tracer    *tracing.Tracer
	Situation *situation.Writer
	Escalator Escalator
	Profiler  *profiling.Profiler
	// Publish broadcasts a stored feed item to connected overlays.
	Publish func(models.FeedItem)
	// BroadcastStatus pushes a status snapshot to connected overlays.
	BroadcastStatus func()
	Logger          *slog.Logger
}

// Engine is the single-in-flight tick loop.
type Engine struct {
	cfg       config.AgentConfig
	chat      ChatCaller
	feed      *buffers.FeedBuffer
	sense     *buffers.SenseBuffer
	tracer    *tracing.Tracer
	situation *situation.Writer
	escalator Escalator
	profiler  *profiling.Profiler
	publish   func(models.FeedItem)
	status    func()
	logger    *slog.Logger

	trigger chan struct{}

	mu          sync.Mutex
	debounce    *time.Timer
	tickID      uint64
	lastHUD     string
	lastEntry   *models.AgentEntry
	lastTickEnd time.Time

	tickMu sync.Mutex
}

// NewEngine creates a tick engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       opts.Config,
		chat:      opts.Chat,
		feed:      opts.Feed,
		sense:     opts.Sense,
		tracer:    opts.Tracer,
		situation: opts.Situation,
		escalator: opts.Escalator,
		profiler:  opts.Profiler,
		publish:   opts.Publish,
		status:    opts.BroadcastStatus,
		logger:    logger.With("component", "analyzer"),
		trigger:   make(chan struct{}, 1),
	}
}

// Notify tells the engine a new event arrived. The tick fires after the
// debounce window unless the engine is still cooling down.
func (e *Engine) Notify() {
	d := time.Duration(e.cfg.DebounceMs) * time.Millisecond
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.debounce == nil {
		e.debounce = time.AfterFunc(d, e.fireDebounced)
		return
	}
	e.debounce.Reset(d)
}

func (e *Engine) fireDebounced() {
	e.mu.Lock()
	cooling := time.Since(e.lastTickEnd) < time.Duration(e.cfg.CooldownMs)*time.Millisecond
	e.mu.Unlock()
	if cooling {
		return
	}
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run executes ticks until ctx is done. Debounced triggers honor the
// cooldown; the max-interval tick fires regardless.
func (e *Engine) Run(ctx context.Context) {
	intervalMs := e.cfg.MaxIntervalMs
	if intervalMs <= 0 {
		intervalMs = 30000
	}
	interval := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer interval.Stop()
	defer e.stopDebounce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
			e.RunTick(ctx)
		case <-interval.C:
			e.RunTick(ctx)
		}
	}
}

func (e *Engine) stopDebounce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// LastEntry returns the most recent tick outcome, if any.
func (e *Engine) LastEntry() *models.AgentEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastEntry == nil {
		return nil
	}
	c := *e.lastEntry
	return &c
}

// RunTick performs one tick. At most one tick runs at a time; a failed
// tick still finishes its trace.
func (e *Engine) RunTick(ctx context.Context) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	defer func() {
		e.mu.Lock()
		e.lastTickEnd = time.Now()
		e.mu.Unlock()
	}()

	e.mu.Lock()
	e.tickID++
	tickID := e.tickID
	prevHUD := e.lastHUD
	e.mu.Unlock()

	tickStart := time.Now()
	trace := e.tracer.StartTick(tickID)
	metrics := models.TraceMetrics{ContextRichness: e.cfg.Richness}

	trace.StartSpan("contextBuild")
	window := contextwin.Assemble(e.feed, e.sense, int64(e.cfg.MaxAgeMs), contextwin.PresetByName(e.cfg.Richness))
	trace.EndSpan(map[string]any{
		"screenEvents": len(window.ScreenEvents),
		"audioEntries": len(window.AudioEntries),
		"currentApp":   window.CurrentApp,
	})
	metrics.ContextScreenEvents = len(window.ScreenEvents)
	metrics.ContextAudioEntries = len(window.AudioEntries)

	prompt := BuildPrompt(window)
	result, err := e.callChain(ctx, trace, prompt)
	if err != nil {
		e.logger.Warn("tick failed", "tickId", tickID, "error", err)
		metrics.TotalLatencyMs = time.Since(tickStart).Milliseconds()
		trace.Finish(metrics)
		return
	}
	metrics.LLMLatencyMs = result.LatencyMs
	metrics.LLMInputTokens = result.TokensIn
	metrics.LLMOutputTokens = result.TokensOut
	metrics.LLMCost = result.Cost
	if e.profiler != nil {
		e.profiler.TimerRecord("analyzer.llm", time.Duration(result.LatencyMs)*time.Millisecond)
	}

	hud, digest, parsedOK := ParseModelOutput(result.Raw)
	metrics.DigestLength = len(digest)

	now := time.Now().UnixMilli()
	freshness := int64(0)
	if window.NewestEventTS > 0 {
		freshness = now - window.NewestEventTS
	}
	historyNames := make([]string, 0, len(window.AppHistory))
	for _, h := range window.AppHistory {
		historyNames = append(historyNames, h.App)
	}
	entry := models.AgentEntry{
		ID:                 tickID,
		TS:                 now,
		Model:              result.Model,
		LatencyMs:          result.LatencyMs,
		TokensIn:           result.TokensIn,
		TokensOut:          result.TokensOut,
		ParsedOK:           parsedOK,
		HUD:                hud,
		Digest:             digest,
		ContextFreshnessMs: freshness,
		Context: models.AgentEntryContext{
			CurrentApp:      window.CurrentApp,
			AppHistoryNames: historyNames,
			AudioCount:      len(window.AudioEntries),
			ScreenCount:     len(window.ScreenEvents),
		},
	}

	hudChanged := hud != prevHUD
	metrics.HUDChanged = hudChanged
	e.mu.Lock()
	e.lastHUD = hud
	e.lastEntry = &entry
	e.mu.Unlock()

	if hudChanged && e.cfg.PushToFeed {
		if item, err := e.feed.Push(models.FeedItem{
			Source:  models.SourceAgent,
			Channel: models.ChannelStream,
			Text:    hud,
		}); err == nil && e.publish != nil {
			e.publish(item)
		}
	}
	if e.status != nil {
		e.status()
	}

	if e.situation != nil {
		trace.StartSpan("situationWrite")
		if err := e.situation.Write(entry, window); err != nil {
			e.logger.Warn("situation write failed", "error", err)
			trace.EndSpanError(err, nil)
		} else {
			trace.EndSpan(nil)
		}
	}

	if e.escalator != nil {
		escStart := time.Now()
		decision := e.escalator.OnTick(entry, window)
		metrics.Escalated = decision.Escalate
		metrics.EscalationScore = decision.Score.Total
		if decision.Escalate {
			metrics.EscalationLatencyMs = time.Since(escStart).Milliseconds()
		}
	}

	metrics.TotalLatencyMs = time.Since(tickStart).Milliseconds()
	trace.Finish(metrics)
	if e.profiler != nil {
		e.profiler.TimerRecord("analyzer.tick", time.Since(tickStart))
		e.profiler.Gauge("analyzer.lastTickId", float64(tickID))
	}
}

// callChain walks [primary, fallbacks...] until one model answers. Each
// attempt gets its own llmCall span.
func (e *Engine) callChain(ctx context.Context, trace *tracing.TickTrace, prompt string) (*llmResult, error) {
	chain := append([]string{e.cfg.Model}, e.cfg.FallbackModels...)
	var lastErr error
	for _, model := range chain {
		trace.StartSpan("llmCall")
		result, err := e.callOnce(ctx, model, prompt)
		if err != nil {
			lastErr = err
			trace.EndSpanError(err, map[string]any{"model": model})
			continue
		}
		trace.EndSpan(map[string]any{
			"model":     model,
			"latencyMs": result.LatencyMs,
			"tokensIn":  result.TokensIn,
			"tokensOut": result.TokensOut,
		})
		return result, nil
	}
	if lastErr != nil {
		return nil, ErrModelUnavailable
	}
	return nil, ErrModelUnavailable
}
