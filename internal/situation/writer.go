// Package situation writes the situation snapshot file other local
// processes read to learn what the user is doing right now.
package situation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

const lineCap = 500

// Writer renders and atomically replaces the snapshot file. The file is
// written to a .tmp sibling and renamed so readers never observe a
// partial document.
type Writer struct {
	path string
}

// NewWriter creates a writer for the given path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Write renders the snapshot for one tick and replaces the file. On any
// failure the .tmp sibling is removed best-effort.
func (w *Writer) Write(entry models.AgentEntry, window models.ContextWindow) error {
	content := Render(entry, window)
	tmp := w.path + ".tmp"
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("situation mkdir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("situation write: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("situation rename: %w", err)
	}
	return nil
}

// Render produces the snapshot document. The first line is always
// "# Situation"; consumers key on that header.
func Render(entry models.AgentEntry, window models.ContextWindow) string {
	now := time.Now().UnixMilli()
	var b strings.Builder

	b.WriteString("# Situation\n\n")
	fmt.Fprintf(&b, "Tick %d · %s · %s\n\n", entry.ID, entry.Model, time.UnixMilli(entry.TS).Format(time.RFC3339))

	b.WriteString("## Digest\n\n")
	b.WriteString(entry.Digest)
	b.WriteString("\n\n")

	b.WriteString("## Active Application\n\n")
	b.WriteString(window.CurrentApp)
	b.WriteString("\n")

	if len(window.AppHistory) > 0 {
		b.WriteString("\n## App History\n\n")
		names := make([]string, 0, len(window.AppHistory))
		for _, h := range window.AppHistory {
			names = append(names, h.App)
		}
		b.WriteString(strings.Join(names, " → "))
		b.WriteString("\n")
	}

	if len(window.ScreenEvents) > 0 {
		b.WriteString("\n## Screen (OCR)\n\n")
		for _, ev := range window.ScreenEvents {
			age := (now - ev.TS) / 1000
			fmt.Fprintf(&b, "- [%ds ago] [%s] %s\n", age, ev.Meta.App, capLine(ev.OCR))
		}
	}

	if len(window.AudioEntries) > 0 {
		b.WriteString("\n## Audio Transcripts\n\n")
		for _, it := range window.AudioEntries {
			age := (now - it.TS) / 1000
			fmt.Fprintf(&b, "- [%ds ago] %s\n", age, capLine(it.Text))
		}
	}

	b.WriteString("\n## Metadata\n\n")
	fmt.Fprintf(&b, "Screen events: %d\n", len(window.ScreenEvents))
	fmt.Fprintf(&b, "Audio entries: %d\n", len(window.AudioEntries))
	fmt.Fprintf(&b, "Parsed OK: %t\n", entry.ParsedOK)
	return b.String()
}

func capLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > lineCap {
		return s[:lineCap]
	}
	return s
}
