// Package models defines the shared data types that flow between the
// capture ingress, the ring buffers, the analyzer, the escalation
// pipeline, and the overlay wire protocol.
package models

// FeedSource identifies where a feed item originated.
type FeedSource string

const (
	SourceAudio     FeedSource = "audio"
	SourceSense     FeedSource = "sense"
	SourceAgent     FeedSource = "agent"
	SourceAssistant FeedSource = "assistant"
	SourceSystem    FeedSource = "system"
)

// FeedChannel selects which overlay lane an item renders on.
type FeedChannel string

const (
	ChannelStream FeedChannel = "stream"
	ChannelAgent  FeedChannel = "agent"
)

// FeedPriority orders overlay rendering urgency.
type FeedPriority string

const (
	PriorityNormal FeedPriority = "normal"
	PriorityHigh   FeedPriority = "high"
	PriorityUrgent FeedPriority = "urgent"
)

// FeedItem is one line of the live activity feed. The id is assigned by
// the feed buffer and never reused; items are immutable after creation.
type FeedItem struct {
	ID       uint64       `json:"id"`
	TS       int64        `json:"ts"`
	Source   FeedSource   `json:"source"`
	Channel  FeedChannel  `json:"channel"`
	Priority FeedPriority `json:"priority"`
	Text     string       `json:"text"`
}

// SenseEventType classifies a screen-capture observation.
type SenseEventType string

const (
	SenseText    SenseEventType = "text"
	SenseVisual  SenseEventType = "visual"
	SenseContext SenseEventType = "context"
)

// ImagePayload carries an optional binary region attached to a sense
// event. Stripped from meta-only query results.
type ImagePayload struct {
	Data   []byte `json:"data,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// SenseMeta is the context the sense client attaches to every event.
type SenseMeta struct {
	App         string  `json:"app"`
	WindowTitle string  `json:"windowTitle,omitempty"`
	Screen      string  `json:"screen"`
	SSIM        float64 `json:"ssim"`
}

// SenseEvent is one screen-capture observation. TS is the producer's
// clock; ReceivedAt is stamped by the sense buffer on push.
type SenseEvent struct {
	ID         uint64         `json:"id"`
	TS         int64          `json:"ts"`
	ReceivedAt int64          `json:"receivedAt"`
	Type       SenseEventType `json:"type"`
	OCR        string         `json:"ocr,omitempty"`
	Meta       SenseMeta      `json:"meta"`
	ROI        *ImagePayload  `json:"roi,omitempty"`
	Diff       *ImagePayload  `json:"diff,omitempty"`
}

// AppTransition is one hop in the de-duplicated app-history chain.
type AppTransition struct {
	App string `json:"app"`
	TS  int64  `json:"ts"`
}

// RichnessPreset bounds how much raw context is packed into prompts and
// escalation messages.
type RichnessPreset struct {
	Name               string `json:"name"`
	MaxScreenEvents    int    `json:"maxScreenEvents"`
	MaxAudioEntries    int    `json:"maxAudioEntries"`
	MaxOCRChars        int    `json:"maxOcrChars"`
	MaxTranscriptChars int    `json:"maxTranscriptChars"`
}

// ContextWindow is an ephemeral snapshot of recent activity assembled
// for one analyzer tick. Slices are newest-first and already truncated
// to the preset's maxima.
type ContextWindow struct {
	ScreenEvents  []SenseEvent
	AudioEntries  []FeedItem
	NewestEventTS int64
	CurrentApp    string
	AppHistory    []AppTransition
	Richness      RichnessPreset
}

// AgentEntryContext summarizes what the analyzer saw for one tick.
type AgentEntryContext struct {
	CurrentApp      string   `json:"currentApp"`
	AppHistoryNames []string `json:"appHistoryNames"`
	AudioCount      int      `json:"audioCount"`
	ScreenCount     int      `json:"screenCount"`
}

// AgentEntry is the outcome of one analyzer tick.
type AgentEntry struct {
	ID                 uint64            `json:"id"`
	TS                 int64             `json:"ts"`
	Model              string            `json:"model"`
	LatencyMs          int64             `json:"latencyMs"`
	TokensIn           int               `json:"tokensIn"`
	TokensOut          int               `json:"tokensOut"`
	ParsedOK           bool              `json:"parsedOk"`
	HUD                string            `json:"hud"`
	Digest             string            `json:"digest"`
	ContextFreshnessMs int64             `json:"contextFreshnessMs"`
	Context            AgentEntryContext `json:"context"`
}

// SpawnTaskStatus tracks an external background task's lifecycle.
type SpawnTaskStatus string

const (
	SpawnSpawned   SpawnTaskStatus = "spawned"
	SpawnPolling   SpawnTaskStatus = "polling"
	SpawnCompleted SpawnTaskStatus = "completed"
	SpawnFailed    SpawnTaskStatus = "failed"
	SpawnTimeout   SpawnTaskStatus = "timeout"
)

// SpawnTask describes an external background task surfaced on the HUD.
type SpawnTask struct {
	TaskID        string          `json:"taskId"`
	Label         string          `json:"label"`
	Status        SpawnTaskStatus `json:"status"`
	StartedAt     int64           `json:"startedAt"`
	CompletedAt   int64           `json:"completedAt,omitempty"`
	ResultPreview string          `json:"resultPreview,omitempty"`
}

// IsTerminal reports whether the task has reached a final state.
func (t SpawnTask) IsTerminal() bool {
	switch t.Status {
	case SpawnCompleted, SpawnFailed, SpawnTimeout:
		return true
	}
	return false
}
