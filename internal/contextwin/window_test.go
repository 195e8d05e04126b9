package contextwin

import (
	"fmt"
	"testing"
	"time"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/pkg/models"
)

func TestAssemble_WindowBoundsAndOrder(t *testing.T) {
	feed := buffers.NewFeedBuffer(100)
	sense := buffers.NewSenseBuffer(30)
	now := time.Now().UnixMilli()

	// One stale event outside the window, three inside.
	sense.Push(models.SenseEvent{Type: models.SenseText, TS: now - 300_000, Meta: models.SenseMeta{App: "Old"}})
	for i := 0; i < 3; i++ {
		sense.Push(models.SenseEvent{Type: models.SenseText, TS: now - int64(i*1000), OCR: fmt.Sprintf("ocr %d", i), Meta: models.SenseMeta{App: "Code"}})
	}
	feed.Push(models.FeedItem{Source: models.SourceAudio, TS: now - 2000, Text: "transcript"})
	feed.Push(models.FeedItem{Source: models.SourceSystem, TS: now - 1000, Text: "not audio"})

	w := Assemble(feed, sense, 120_000, PresetStandard)
	if len(w.ScreenEvents) != 3 {
		t.Fatalf("screen events = %d, want 3", len(w.ScreenEvents))
	}
	for i := 1; i < len(w.ScreenEvents); i++ {
		if w.ScreenEvents[i-1].TS < w.ScreenEvents[i].TS {
			t.Error("screen events not newest-first")
		}
	}
	if len(w.AudioEntries) != 1 {
		t.Fatalf("audio entries = %d, want 1", len(w.AudioEntries))
	}
	if w.NewestEventTS != now {
		t.Errorf("newestEventTs = %d, want %d", w.NewestEventTS, now)
	}
}

func TestAssemble_TruncatesToPreset(t *testing.T) {
	feed := buffers.NewFeedBuffer(100)
	sense := buffers.NewSenseBuffer(30)
	now := time.Now().UnixMilli()
	for i := 0; i < 10; i++ {
		sense.Push(models.SenseEvent{Type: models.SenseText, TS: now - int64(i*100), Meta: models.SenseMeta{App: "Code"}})
	}
	w := Assemble(feed, sense, 120_000, PresetLean)
	if len(w.ScreenEvents) != PresetLean.MaxScreenEvents {
		t.Errorf("screen events = %d, want %d", len(w.ScreenEvents), PresetLean.MaxScreenEvents)
	}
}

func TestAssemble_EmptyBuffers(t *testing.T) {
	feed := buffers.NewFeedBuffer(100)
	sense := buffers.NewSenseBuffer(30)
	w := Assemble(feed, sense, 120_000, PresetStandard)
	if w.NewestEventTS != 0 {
		t.Errorf("newestEventTs = %d, want 0", w.NewestEventTS)
	}
	if w.CurrentApp != "unknown" {
		t.Errorf("currentApp = %q, want unknown", w.CurrentApp)
	}
}

func TestAssemble_NormalizesHistory(t *testing.T) {
	feed := buffers.NewFeedBuffer(100)
	sense := buffers.NewSenseBuffer(30)
	now := time.Now().UnixMilli()
	sense.Push(models.SenseEvent{Type: models.SenseText, TS: now - 2000, Meta: models.SenseMeta{App: "code"}})
	sense.Push(models.SenseEvent{Type: models.SenseText, TS: now - 1000, Meta: models.SenseMeta{App: "chrome.exe"}})

	w := Assemble(feed, sense, 120_000, PresetStandard)
	if len(w.AppHistory) != 2 {
		t.Fatalf("history = %+v", w.AppHistory)
	}
	if w.AppHistory[0].App != "VS Code" || w.AppHistory[1].App != "Chrome" {
		t.Errorf("history not normalized: %+v", w.AppHistory)
	}
	if w.CurrentApp != "Chrome" {
		t.Errorf("currentApp = %q, want Chrome", w.CurrentApp)
	}
}

func TestPresetByName(t *testing.T) {
	if PresetByName("lean").Name != "lean" {
		t.Error("lean preset not resolved")
	}
	if PresetByName("rich").Name != "rich" {
		t.Error("rich preset not resolved")
	}
	if PresetByName("bogus").Name != "standard" {
		t.Error("unknown preset should default to standard")
	}
}
