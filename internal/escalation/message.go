package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// BuildMessage renders the structured escalation message delivered to
// the assistant. Size tracks the richness preset; everything stays well
// under the gateway's 256 KB envelope.
func BuildMessage(mode string, entry models.AgentEntry, window models.ContextWindow) string {
	now := time.Now().UnixMilli()
	caps := window.Richness
	var b strings.Builder

	fmt.Fprintf(&b, "[sinain-hud live context — tick #%d]\n\n", entry.ID)

	b.WriteString("## Digest\n")
	b.WriteString(entry.Digest)
	b.WriteString("\n\n")

	b.WriteString("## Active Context\n")
	b.WriteString(window.CurrentApp)
	if len(window.AppHistory) > 0 {
		names := make([]string, 0, len(window.AppHistory))
		for _, h := range window.AppHistory {
			names = append(names, h.App)
		}
		b.WriteString("\nApp history: " + strings.Join(names, " → "))
	}
	b.WriteString("\n\n")

	var errEvents []models.SenseEvent
	for _, ev := range window.ScreenEvents {
		if OCRHasError(ev.OCR) {
			errEvents = append(errEvents, ev)
		}
	}
	if len(errEvents) > 0 {
		b.WriteString("## Errors (high priority)\n")
		for _, ev := range errEvents {
			b.WriteString("```\n")
			b.WriteString(capText(ev.OCR, caps.MaxOCRChars))
			b.WriteString("\n```\n")
		}
		b.WriteString("\n")
	}

	if len(window.ScreenEvents) > 0 {
		b.WriteString("## Screen (recent OCR)\n")
		for _, ev := range window.ScreenEvents {
			age := (now - ev.TS) / 1000
			fmt.Fprintf(&b, "- [%ds ago] [%s] %s\n", age, ev.Meta.App, capText(flatten(ev.OCR), caps.MaxOCRChars))
		}
		b.WriteString("\n")
	}

	if len(window.AudioEntries) > 0 {
		b.WriteString("## Audio (recent transcripts)\n")
		for _, it := range window.AudioEntries {
			age := (now - it.TS) / 1000
			fmt.Fprintf(&b, "- [%ds ago] %q\n", age, capText(it.Text, caps.MaxTranscriptChars))
		}
		b.WriteString("\n")
	}

	if mode == "focus" || mode == "rich" {
		b.WriteString("You are watching the user's live activity. Respond with concrete, actionable help for the situation above. Do not reply NO_REPLY; a response is always expected in this mode.\n\n")
	} else {
		b.WriteString("If the situation warrants it, respond with 2-5 sentences of actionable help. Keep it specific to what the user is doing.\n\n")
	}

	b.WriteString("Respond naturally — this will appear on the user's HUD overlay.")
	return b.String()
}

func capText(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
