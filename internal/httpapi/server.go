// Package httpapi exposes the ingress HTTP surface: sense and feed
// ingestion, runtime agent config, health, traces, metrics, and the
// overlay websocket route.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/internal/config"
	"github.com/Geravant/sinain-hud/internal/escalation"
	"github.com/Geravant/sinain-hud/internal/overlay"
	"github.com/Geravant/sinain-hud/internal/profiling"
	"github.com/Geravant/sinain-hud/internal/tracing"
	"github.com/Geravant/sinain-hud/pkg/models"
)

// maxSenseBody caps sense ingress payloads.
const maxSenseBody = 2 << 20

// Notifier wakes the tick engine when new events arrive.
type Notifier interface {
	Notify()
}

// ModeSetter hot-swaps the escalation mode.
type ModeSetter interface {
	SetMode(mode string)
	Mode() string
	Counters() escalation.Counters
}

// Options wires the HTTP surface.
type Options struct {
	Feed     *buffers.FeedBuffer
	Sense    *buffers.SenseBuffer
	Tracer   *tracing.Tracer
	Profiler *profiling.Profiler
	Overlay  *overlay.Server
	Engine   Notifier
	Modes    ModeSetter
	Logger   *slog.Logger
}

// Server is the ingress HTTP handler set.
type Server struct {
	feed     *buffers.FeedBuffer
	sense    *buffers.SenseBuffer
	tracer   *tracing.Tracer
	profiler *profiling.Profiler
	overlay  *overlay.Server
	engine   Notifier
	modes    ModeSetter
	logger   *slog.Logger
}

// NewServer creates the HTTP surface.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		feed:     opts.Feed,
		sense:    opts.Sense,
		tracer:   opts.Tracer,
		profiler: opts.Profiler,
		overlay:  opts.Overlay,
		engine:   opts.Engine,
		modes:    opts.Modes,
		logger:   logger.With("component", "httpapi"),
	}
}

// Routes builds the mux, including the overlay websocket route.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sense", s.handleSensePost)
	mux.HandleFunc("GET /sense", s.handleSenseGet)
	mux.HandleFunc("POST /feed", s.handleFeedPost)
	mux.HandleFunc("GET /feed", s.handleFeedGet)
	mux.HandleFunc("POST /profiling/sense", s.handleProfilingSense)
	mux.HandleFunc("POST /agent/config", s.handleAgentConfig)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /traces", s.handleTraces)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	if s.overlay != nil {
		mux.HandleFunc("/ws", s.overlay.HandleWS)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

type senseBody struct {
	Type models.SenseEventType `json:"type"`
	TS   int64                 `json:"ts"`
	OCR  string                `json:"ocr,omitempty"`
	Meta models.SenseMeta      `json:"meta"`
	ROI  *models.ImagePayload  `json:"roi,omitempty"`
	Diff *models.ImagePayload  `json:"diff,omitempty"`
}

func (s *Server) handleSensePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSenseBody)
	var body senseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body exceeds 2 MiB")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev, err := s.sense.Push(models.SenseEvent{
		Type: body.Type,
		TS:   body.TS,
		OCR:  body.OCR,
		Meta: body.Meta,
		ROI:  body.ROI,
		Diff: body.Diff,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "type and ts are required")
		return
	}
	if s.engine != nil {
		s.engine.Notify()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": ev.ID})
}

func (s *Server) handleSenseGet(w http.ResponseWriter, r *http.Request) {
	after := parseUint(r.URL.Query().Get("after"))
	metaOnly := r.URL.Query().Get("meta_only") == "true"
	writeJSON(w, http.StatusOK, map[string]any{
		"events":  s.sense.Query(after, metaOnly),
		"version": s.sense.Version(),
	})
}

func (s *Server) handleFeedPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSenseBody)
	var item models.FeedItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	stored, err := s.feed.Push(item)
	if err != nil {
		writeError(w, http.StatusBadRequest, "text or source is required")
		return
	}
	if s.overlay != nil {
		s.overlay.BroadcastFeed(stored)
	}
	if s.engine != nil {
		s.engine.Notify()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": stored.ID})
}

func (s *Server) handleFeedGet(w http.ResponseWriter, r *http.Request) {
	after := parseUint(r.URL.Query().Get("after"))
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   s.feed.QueryForOverlay(after),
		"version": s.feed.Version(),
	})
}

func (s *Server) handleProfilingSense(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSenseBody)
	var snapshot map[string]any
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.profiler != nil {
		s.profiler.ReportScreen(snapshot)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type agentConfigBody struct {
	Mode string `json:"mode"`
}

func (s *Server) handleAgentConfig(w http.ResponseWriter, r *http.Request) {
	var body agentConfigBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !config.IsValidMode(body.Mode) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", body.Mode))
		return
	}
	if s.modes != nil {
		s.modes.SetMode(body.Mode)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": body.Mode})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":          true,
		"feedSize":    s.feed.Size(),
		"senseSize":   s.sense.Size(),
		"feedVersion": s.feed.Version(),
	}
	if s.overlay != nil {
		resp["overlayClients"] = s.overlay.ClientCount()
	}
	if s.modes != nil {
		resp["escalationMode"] = s.modes.Mode()
		resp["escalation"] = s.modes.Counters()
	}
	if s.profiler != nil {
		resp["profiling"] = s.profiler.Snapshot()
	}
	if s.tracer != nil {
		resp["traces"] = s.tracer.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	after := parseUint(r.URL.Query().Get("after"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"traces": s.tracer.GetTraces(after, limit),
		"stats":  s.tracer.Stats(),
	})
}

func parseUint(v string) uint64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
