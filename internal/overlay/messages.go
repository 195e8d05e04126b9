package overlay

import (
	"encoding/json"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// FeedMessage renders one feed item on the overlay.
type FeedMessage struct {
	Type     string              `json:"type"`
	Text     string              `json:"text"`
	Priority models.FeedPriority `json:"priority"`
	TS       int64               `json:"ts"`
	Channel  models.FeedChannel  `json:"channel"`

	// id is used for replay ordering; the overlay ignores it.
	ID uint64 `json:"id,omitempty"`
}

// NewFeedMessage converts a stored feed item to its wire form.
func NewFeedMessage(item models.FeedItem) FeedMessage {
	return FeedMessage{
		Type:     "feed",
		Text:     item.Text,
		Priority: item.Priority,
		TS:       item.TS,
		Channel:  item.Channel,
		ID:       item.ID,
	}
}

// StatusMessage is the capture/connection snapshot pushed on connect
// and after every tick.
type StatusMessage struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"`
	Screen     string `json:"screen"`
	Connection string `json:"connection"`
}

// PingMessage is the app-level liveness probe. Some overlay runtimes do
// not surface protocol-level pings, so both are sent.
type PingMessage struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// SpawnTaskMessage mirrors a spawn-task lifecycle update.
type SpawnTaskMessage struct {
	Type          string                 `json:"type"`
	TaskID        string                 `json:"taskId"`
	Label         string                 `json:"label"`
	Status        models.SpawnTaskStatus `json:"status"`
	StartedAt     int64                  `json:"startedAt"`
	CompletedAt   int64                  `json:"completedAt,omitempty"`
	ResultPreview string                 `json:"resultPreview,omitempty"`
}

// NewSpawnTaskMessage converts a spawn task to its wire form.
func NewSpawnTaskMessage(task models.SpawnTask) SpawnTaskMessage {
	return SpawnTaskMessage{
		Type:          "spawn_task",
		TaskID:        task.TaskID,
		Label:         task.Label,
		Status:        task.Status,
		StartedAt:     task.StartedAt,
		CompletedAt:   task.CompletedAt,
		ResultPreview: task.ResultPreview,
	}
}

// inboundMessage is the envelope for client-to-server messages. Unknown
// types are logged and ignored.
type inboundMessage struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Action string  `json:"action,omitempty"`
	TS     int64   `json:"ts,omitempty"`
	RSSMb  float64 `json:"rssMb,omitempty"`
	Uptime float64 `json:"uptimeS,omitempty"`
}

func marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
