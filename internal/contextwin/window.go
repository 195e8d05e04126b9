// Package contextwin assembles the bounded activity snapshot one
// analyzer tick operates on. Assembly is pure: it reads consistent
// buffer slices and performs no I/O.
package contextwin

import (
	"sort"
	"time"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/pkg/models"
)

// Richness presets bound how much raw context is packed into prompts
// and escalation messages.
var (
	PresetLean     = models.RichnessPreset{Name: "lean", MaxScreenEvents: 3, MaxAudioEntries: 3, MaxOCRChars: 400, MaxTranscriptChars: 200}
	PresetStandard = models.RichnessPreset{Name: "standard", MaxScreenEvents: 8, MaxAudioEntries: 10, MaxOCRChars: 1500, MaxTranscriptChars: 500}
	PresetRich     = models.RichnessPreset{Name: "rich", MaxScreenEvents: 20, MaxAudioEntries: 30, MaxOCRChars: 4000, MaxTranscriptChars: 1500}
)

// PresetByName resolves a preset name, defaulting to standard.
func PresetByName(name string) models.RichnessPreset {
	switch name {
	case "lean":
		return PresetLean
	case "rich":
		return PresetRich
	default:
		return PresetStandard
	}
}

// Assemble snapshots the audio and screen activity inside
// [now-ageMs, now], newest first, truncated to the preset's maxima.
// AppHistory is computed over the same window with normalized names.
func Assemble(feed *buffers.FeedBuffer, sense *buffers.SenseBuffer, ageMs int64, preset models.RichnessPreset) models.ContextWindow {
	now := time.Now().UnixMilli()
	since := now - ageMs

	screen := sense.QueryByTime(since)
	sort.Slice(screen, func(i, j int) bool { return screen[i].TS > screen[j].TS })
	if len(screen) > preset.MaxScreenEvents {
		screen = screen[:preset.MaxScreenEvents]
	}

	audio := feed.QueryBySource(models.SourceAudio, since)
	sort.Slice(audio, func(i, j int) bool { return audio[i].TS > audio[j].TS })
	if len(audio) > preset.MaxAudioEntries {
		audio = audio[:preset.MaxAudioEntries]
	}

	var newest int64
	for _, ev := range screen {
		if ev.TS > newest {
			newest = ev.TS
		}
	}
	for _, it := range audio {
		if it.TS > newest {
			newest = it.TS
		}
	}

	history := sense.AppHistory(since)
	for i := range history {
		history[i].App = NormalizeAppName(history[i].App)
	}

	return models.ContextWindow{
		ScreenEvents:  screen,
		AudioEntries:  audio,
		NewestEventTS: newest,
		CurrentApp:    NormalizeAppName(sense.LatestApp()),
		AppHistory:    history,
		Richness:      preset,
	}
}
