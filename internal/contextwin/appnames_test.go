package contextwin

import "testing"

func TestNormalizeAppName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"code", "VS Code"},
		{"Code.exe", "VS Code"},
		{"google chrome", "Chrome"},
		{"iTerm2", "iTerm"},
		{"zoom.us", "Zoom"},
		{"  slack  ", "Slack"},
		{"MyCustomApp.exe", "MyCustomApp"},
		{"Obscure Tool", "Obscure Tool"},
		{"", "unknown"},
	}
	for _, tc := range cases {
		if got := NormalizeAppName(tc.in); got != tc.want {
			t.Errorf("NormalizeAppName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
