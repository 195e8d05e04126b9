package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// BuildPrompt renders the analyzer prompt for one context window. Lines
// are newest first, age-stamped, and capped at the preset's per-event
// character limits.
func BuildPrompt(window models.ContextWindow) string {
	now := time.Now().UnixMilli()
	caps := window.Richness
	var b strings.Builder

	b.WriteString("You are observing one person's live computer activity through screen OCR and audio transcripts.\n\n")
	fmt.Fprintf(&b, "Active app: %s\n", window.CurrentApp)

	if len(window.AppHistory) > 0 {
		names := make([]string, 0, len(window.AppHistory))
		for _, h := range window.AppHistory {
			names = append(names, h.App)
		}
		fmt.Fprintf(&b, "App chain: %s\n", strings.Join(names, " → "))
	}

	if len(window.ScreenEvents) > 0 {
		b.WriteString("\nScreen (newest first):\n")
		for _, ev := range window.ScreenEvents {
			age := (now - ev.TS) / 1000
			ocr := strings.Join(strings.Fields(ev.OCR), " ")
			if caps.MaxOCRChars > 0 && len(ocr) > caps.MaxOCRChars {
				ocr = ocr[:caps.MaxOCRChars]
			}
			fmt.Fprintf(&b, "[%ds ago] [%s] %s\n", age, ev.Meta.App, ocr)
		}
	}

	if len(window.AudioEntries) > 0 {
		b.WriteString("\nAudio (newest first):\n")
		for _, it := range window.AudioEntries {
			age := (now - it.TS) / 1000
			text := it.Text
			if caps.MaxTranscriptChars > 0 && len(text) > caps.MaxTranscriptChars {
				text = text[:caps.MaxTranscriptChars]
			}
			fmt.Fprintf(&b, "[%ds ago] %q\n", age, text)
		}
	}

	b.WriteString("\nRespond with strict JSON, no markdown, no commentary:\n")
	b.WriteString(`{"hud": "<status line, at most 15 words>", "digest": "<3-5 factual sentences describing what the user is doing>"}`)
	return b.String()
}
