package analyzer

import (
	"encoding/json"
	"strings"
)

// hudOutput is the shape the model is instructed to return.
type hudOutput struct {
	HUD    string `json:"hud"`
	Digest string `json:"digest"`
}

// rawHUDCap bounds the HUD line carved from unparseable output.
const rawHUDCap = 80

// ParseModelOutput extracts hud and digest from model output. The first
// pass is a strict JSON parse after stripping any fenced-code wrapper;
// the second extracts the first {...} substring; the final fallback
// keeps the raw text as the digest with a truncated HUD.
func ParseModelOutput(raw string) (hud, digest string, parsedOK bool) {
	trimmed := stripFences(strings.TrimSpace(raw))

	var out hudOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil && out.HUD != "" {
		return out.HUD, out.Digest, true
	}

	if inner := extractObject(trimmed); inner != "" {
		if err := json.Unmarshal([]byte(inner), &out); err == nil && out.HUD != "" {
			return out.HUD, out.Digest, true
		}
	}

	hud = raw
	if len(hud) > rawHUDCap {
		hud = hud[:rawHUDCap]
	}
	return hud, raw, false
}

// stripFences removes a ```json ... ``` (or bare ```) wrapper.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced {...} substring, or "".
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
