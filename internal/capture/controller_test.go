package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/pkg/models"
)

type blockingTranscriber struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingTranscriber) Transcribe(AudioChunk) (TranscriptResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return TranscriptResult{Text: "done", TS: time.Now().UnixMilli()}, nil
}

func TestToggles(t *testing.T) {
	c := NewController(Options{Feed: buffers.NewFeedBuffer(10)})
	if c.AudioState() != "muted" || c.ScreenState() != "off" {
		t.Errorf("initial states: audio=%q screen=%q", c.AudioState(), c.ScreenState())
	}
	c.ToggleAudio()
	c.ToggleScreen()
	if c.AudioState() != "active" || c.ScreenState() != "active" {
		t.Errorf("toggled states: audio=%q screen=%q", c.AudioState(), c.ScreenState())
	}
}

func TestSubmitChunk_DropsPastSlotCap(t *testing.T) {
	tr := &blockingTranscriber{release: make(chan struct{})}
	c := NewController(Options{Transcriber: tr, Feed: buffers.NewFeedBuffer(10)})

	for i := 0; i < maxPendingTranscriptions+2; i++ {
		c.SubmitChunk(AudioChunk{})
	}

	deadline := time.Now().Add(time.Second)
	for {
		tr.mu.Lock()
		calls := tr.calls
		tr.mu.Unlock()
		if calls == maxPendingTranscriptions {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transcriber calls = %d, want %d", calls, maxPendingTranscriptions)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if c.DroppedChunks() != 2 {
		t.Errorf("dropped = %d, want 2", c.DroppedChunks())
	}
	close(tr.release)
}

func TestSubmitChunk_PushesTranscript(t *testing.T) {
	tr := &blockingTranscriber{release: make(chan struct{})}
	close(tr.release)
	feed := buffers.NewFeedBuffer(10)
	notified := make(chan struct{}, 1)
	c := NewController(Options{
		Transcriber: tr,
		Feed:        feed,
		Notify:      func() { notified <- struct{}{} },
	})

	c.SubmitChunk(AudioChunk{})
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("engine never notified")
	}

	items := feed.QueryBySource(models.SourceAudio, 0)
	if len(items) != 1 || items[0].Text != "done" {
		t.Errorf("feed = %+v", items)
	}
}
