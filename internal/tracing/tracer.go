// Package tracing records per-tick structured traces, keeps a rolling
// in-memory window for the HTTP surface, and appends finished traces to
// a daily JSONL journal.
package tracing

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// maxTraces bounds the rolling in-memory window.
const maxTraces = 500

// Tracer owns the rolling trace window and running statistics.
type Tracer struct {
	mu      sync.Mutex
	traces  []models.Trace
	journal *Journal

	count     int64
	totalCost float64
}

// NewTracer creates a tracer. The journal may be nil when persistence
// is disabled.
func NewTracer(journal *Journal) *Tracer {
	return &Tracer{journal: journal}
}

// TickTrace accumulates spans for one tick until Finish is called.
type TickTrace struct {
	tracer *Tracer
	trace  models.Trace

	mu   sync.Mutex
	open *models.Span
}

// StartTick begins a new trace for the given tick.
func (t *Tracer) StartTick(tickID uint64) *TickTrace {
	return &TickTrace{
		tracer: t,
		trace: models.Trace{
			TraceID: uuid.NewString(),
			TickID:  tickID,
			TS:      time.Now().UnixMilli(),
		},
	}
}

// StartSpan opens a named span. Spans do not nest; opening a new span
// while one is open closes the prior span as ok.
func (tt *TickTrace) StartSpan(name string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.open != nil {
		tt.closeOpenLocked(models.SpanOK, "", nil)
	}
	tt.open = &models.Span{
		Name:    name,
		StartTS: time.Now().UnixMilli(),
		Status:  models.SpanOK,
	}
}

// EndSpan closes the open span as ok with the given attributes.
func (tt *TickTrace) EndSpan(attrs map[string]any) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.closeOpenLocked(models.SpanOK, "", attrs)
}

// EndSpanError closes the open span with status error.
func (tt *TickTrace) EndSpanError(err error, attrs map[string]any) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	tt.closeOpenLocked(models.SpanError, msg, attrs)
}

func (tt *TickTrace) closeOpenLocked(status models.SpanStatus, errMsg string, attrs map[string]any) {
	if tt.open == nil {
		return
	}
	span := *tt.open
	span.EndTS = time.Now().UnixMilli()
	span.Status = status
	span.Error = errMsg
	span.Attributes = attrs
	tt.trace.Spans = append(tt.trace.Spans, span)
	tt.open = nil
}

// Finish seals the trace with its metric rollup, stores it in the
// rolling window, and appends it to the journal.
func (tt *TickTrace) Finish(metrics models.TraceMetrics) models.Trace {
	tt.mu.Lock()
	if tt.open != nil {
		tt.closeOpenLocked(models.SpanOK, "", nil)
	}
	tt.trace.Metrics = metrics
	trace := tt.trace
	tt.mu.Unlock()

	tt.tracer.record(trace)
	return trace
}

func (t *Tracer) record(trace models.Trace) {
	t.mu.Lock()
	t.traces = append(t.traces, trace)
	if len(t.traces) > maxTraces {
		t.traces = t.traces[len(t.traces)-maxTraces:]
	}
	t.count++
	t.totalCost += trace.Metrics.LLMCost
	journal := t.journal
	t.mu.Unlock()

	if journal != nil {
		journal.Append(trace)
	}
}

// GetTraces returns up to limit traces with tickId > after, oldest
// first. A non-positive limit returns all matches.
func (t *Tracer) GetTraces(after uint64, limit int) []models.Trace {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Trace, 0, len(t.traces))
	for _, tr := range t.traces {
		if tr.TickID > after {
			out = append(out, tr)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats is the running summary across all recorded traces.
type Stats struct {
	Count          int64   `json:"count"`
	LatencyP50     int64   `json:"latencyP50"`
	LatencyP95     int64   `json:"latencyP95"`
	AvgCostPerTick float64 `json:"avgCostPerTick"`
	TotalCost      float64 `json:"totalCost"`
}

// Stats computes percentiles over the rolling window and totals over
// the tracer's lifetime.
func (t *Tracer) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := Stats{Count: t.count, TotalCost: t.totalCost}
	if t.count > 0 {
		stats.AvgCostPerTick = t.totalCost / float64(t.count)
	}
	if len(t.traces) == 0 {
		return stats
	}
	latencies := make([]int64, 0, len(t.traces))
	for _, tr := range t.traces {
		latencies = append(latencies, tr.Metrics.TotalLatencyMs)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	stats.LatencyP50 = latencies[len(latencies)/2]
	idx95 := (len(latencies) * 95) / 100
	if idx95 >= len(latencies) {
		idx95 = len(latencies) - 1
	}
	stats.LatencyP95 = latencies[idx95]
	return stats
}
