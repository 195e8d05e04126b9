package models

// SpanStatus marks whether a span completed cleanly.
type SpanStatus string

const (
	SpanOK    SpanStatus = "ok"
	SpanError SpanStatus = "error"
)

// Span is one timed step inside a tick trace.
type Span struct {
	Name       string         `json:"name"`
	StartTS    int64          `json:"startTs"`
	EndTS      int64          `json:"endTs"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Status     SpanStatus     `json:"status"`
	Error      string         `json:"error,omitempty"`
}

// TraceMetrics is the per-tick rollup recorded when a trace finishes.
type TraceMetrics struct {
	TotalLatencyMs      int64   `json:"totalLatencyMs"`
	LLMLatencyMs        int64   `json:"llmLatencyMs"`
	LLMInputTokens      int     `json:"llmInputTokens"`
	LLMOutputTokens     int     `json:"llmOutputTokens"`
	LLMCost             float64 `json:"llmCost"`
	Escalated           bool    `json:"escalated"`
	EscalationScore     int     `json:"escalationScore"`
	EscalationLatencyMs int64   `json:"escalationLatencyMs,omitempty"`
	ContextScreenEvents int     `json:"contextScreenEvents"`
	ContextAudioEntries int     `json:"contextAudioEntries"`
	ContextRichness     string  `json:"contextRichness"`
	DigestLength        int     `json:"digestLength"`
	HUDChanged          bool    `json:"hudChanged"`
}

// Trace is the structured record of one analyzer tick.
type Trace struct {
	TraceID string       `json:"traceId"`
	TickID  uint64       `json:"tickId"`
	TS      int64        `json:"ts"`
	Spans   []Span       `json:"spans"`
	Metrics TraceMetrics `json:"metrics"`
}
