// Package capture tracks the state of the external capture
// collaborators (audio transcription, screen client) and routes
// transcription results into the feed.
package capture

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/pkg/models"
)

// maxPendingTranscriptions caps concurrent transcription requests.
// Chunks arriving past the cap are dropped and counted.
const maxPendingTranscriptions = 3

// AudioChunk is one piece of captured audio awaiting transcription.
type AudioChunk struct {
	SampleRate int
	Data       []byte
}

// TranscriptResult is the transcription backend's output for one chunk.
type TranscriptResult struct {
	Text string
	TS   int64
}

// Transcriber is the external transcription backend.
type Transcriber interface {
	Transcribe(chunk AudioChunk) (TranscriptResult, error)
}

// Controller owns capture state and the transcription slot counter.
type Controller struct {
	mu          sync.Mutex
	audioActive bool
	screenOn    bool
	altDevice   bool

	pending atomic.Int32
	dropped atomic.Int64

	transcriber Transcriber
	feed        *buffers.FeedBuffer
	// publish broadcasts stored transcript items to overlays.
	publish func(models.FeedItem)
	// notify wakes the tick engine on new transcripts.
	notify func()
	logger *slog.Logger
}

// Options wires a controller. Transcriber may be nil when no audio
// backend is attached.
type Options struct {
	Transcriber Transcriber
	Feed        *buffers.FeedBuffer
	Publish     func(models.FeedItem)
	Notify      func()
	Logger      *slog.Logger
}

// NewController creates a controller with audio and screen inactive.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		transcriber: opts.Transcriber,
		feed:        opts.Feed,
		publish:     opts.Publish,
		notify:      opts.Notify,
		logger:      logger.With("component", "capture"),
	}
}

// ToggleAudio flips audio capture on or off.
func (c *Controller) ToggleAudio() {
	c.mu.Lock()
	c.audioActive = !c.audioActive
	state := c.audioActive
	c.mu.Unlock()
	c.logger.Info("audio capture toggled", "active", state)
}

// ToggleScreen flips the screen capture collaborator on or off.
func (c *Controller) ToggleScreen() {
	c.mu.Lock()
	c.screenOn = !c.screenOn
	state := c.screenOn
	c.mu.Unlock()
	c.logger.Info("screen capture toggled", "active", state)
}

// SwitchDevice rotates between the primary and alternate audio device.
func (c *Controller) SwitchDevice() {
	c.mu.Lock()
	c.altDevice = !c.altDevice
	alt := c.altDevice
	c.mu.Unlock()
	c.logger.Info("audio device switched", "alternate", alt)
}

// AudioState reports "active" or "muted" for status frames.
func (c *Controller) AudioState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audioActive {
		return "active"
	}
	return "muted"
}

// ScreenState reports "active" or "off" for status frames.
func (c *Controller) ScreenState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screenOn {
		return "active"
	}
	return "off"
}

// DroppedChunks reports how many chunks were shed at the slot cap.
func (c *Controller) DroppedChunks() int64 {
	return c.dropped.Load()
}

// SubmitChunk sends one audio chunk through the transcription backend
// and pushes non-empty results onto the feed. When all transcription
// slots are busy the chunk is dropped and counted.
func (c *Controller) SubmitChunk(chunk AudioChunk) {
	if c.transcriber == nil {
		return
	}
	if c.pending.Add(1) > maxPendingTranscriptions {
		c.pending.Add(-1)
		c.dropped.Add(1)
		c.logger.Debug("transcription slots exhausted, chunk dropped")
		return
	}
	go func() {
		defer c.pending.Add(-1)
		result, err := c.transcriber.Transcribe(chunk)
		if err != nil {
			c.logger.Warn("transcription failed", "error", err)
			return
		}
		if result.Text == "" {
			return
		}
		item, err := c.feed.Push(models.FeedItem{
			TS:      result.TS,
			Source:  models.SourceAudio,
			Channel: models.ChannelStream,
			Text:    result.Text,
		})
		if err != nil {
			return
		}
		if c.publish != nil {
			c.publish(item)
		}
		if c.notify != nil {
			c.notify()
		}
	}()
}
