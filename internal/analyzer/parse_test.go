package analyzer

import (
	"strings"
	"testing"
)

func TestParseModelOutput_StrictJSON(t *testing.T) {
	hud, digest, ok := ParseModelOutput(`{"hud": "Editing Go code", "digest": "The user edits."}`)
	if !ok {
		t.Fatal("strict JSON not parsed")
	}
	if hud != "Editing Go code" || digest != "The user edits." {
		t.Errorf("got hud=%q digest=%q", hud, digest)
	}
}

func TestParseModelOutput_FencedJSON(t *testing.T) {
	raw := "```json\n{\"hud\": \"Reading docs\", \"digest\": \"Browsing documentation.\"}\n```"
	hud, _, ok := ParseModelOutput(raw)
	if !ok || hud != "Reading docs" {
		t.Errorf("fenced JSON not parsed: hud=%q ok=%v", hud, ok)
	}
}

func TestParseModelOutput_EmbeddedObject(t *testing.T) {
	raw := `Sure! Here is the summary: {"hud": "Debugging", "digest": "Stack traces everywhere."} Hope that helps.`
	hud, digest, ok := ParseModelOutput(raw)
	if !ok {
		t.Fatal("embedded object not extracted")
	}
	if hud != "Debugging" || digest != "Stack traces everywhere." {
		t.Errorf("got hud=%q digest=%q", hud, digest)
	}
}

func TestParseModelOutput_NestedBraces(t *testing.T) {
	raw := `prefix {"hud": "ok", "digest": "has {braces} inside"} suffix`
	_, digest, ok := ParseModelOutput(raw)
	if !ok || !strings.Contains(digest, "{braces}") {
		t.Errorf("nested braces mishandled: digest=%q ok=%v", digest, ok)
	}
}

func TestParseModelOutput_RawFallback(t *testing.T) {
	raw := strings.Repeat("not json at all ", 20)
	hud, digest, ok := ParseModelOutput(raw)
	if ok {
		t.Fatal("garbage reported as parsed")
	}
	if len(hud) != 80 {
		t.Errorf("fallback hud length = %d, want 80", len(hud))
	}
	if digest != raw {
		t.Error("fallback digest should be the raw output")
	}
}

func TestParseModelOutput_ShortRaw(t *testing.T) {
	hud, digest, ok := ParseModelOutput("busy")
	if ok || hud != "busy" || digest != "busy" {
		t.Errorf("short raw fallback wrong: hud=%q digest=%q ok=%v", hud, digest, ok)
	}
}
