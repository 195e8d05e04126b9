package contextwin

import "strings"

// appAliases canonicalizes the process names the sense client reports
// into the display names the HUD and prompts use.
var appAliases = map[string]string{
	"code":               "VS Code",
	"vscode":             "VS Code",
	"visual studio code": "VS Code",
	"chrome":             "Chrome",
	"google chrome":      "Chrome",
	"chromium":           "Chrome",
	"firefox":            "Firefox",
	"safari":             "Safari",
	"iterm":              "iTerm",
	"iterm2":             "iTerm",
	"terminal":           "Terminal",
	"slack":              "Slack",
	"discord":            "Discord",
	"notion":             "Notion",
	"obsidian":           "Obsidian",
	"figma":              "Figma",
	"xcode":              "Xcode",
	"intellij idea":      "IntelliJ",
	"idea":               "IntelliJ",
	"finder":             "Finder",
	"preview":            "Preview",
	"zoom":               "Zoom",
	"zoom.us":            "Zoom",
	"spotify":            "Spotify",
	"mail":               "Mail",
	"messages":           "Messages",
}

var appExtensions = []string{".exe", ".app", ".bin"}

// NormalizeAppName strips executable extensions and maps well-known
// process names to their display aliases. Unrecognized names pass
// through with surrounding whitespace trimmed.
func NormalizeAppName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "unknown"
	}
	lower := strings.ToLower(trimmed)
	for _, ext := range appExtensions {
		lower = strings.TrimSuffix(lower, ext)
	}
	if alias, ok := appAliases[lower]; ok {
		return alias
	}
	// Preserve the producer's casing once extensions are gone.
	for _, ext := range appExtensions {
		if strings.HasSuffix(strings.ToLower(trimmed), ext) {
			return trimmed[:len(trimmed)-len(ext)]
		}
	}
	return trimmed
}
