package escalation

import (
	"testing"

	"github.com/Geravant/sinain-hud/pkg/models"
)

func windowWith(audio []string, apps []string) models.ContextWindow {
	w := models.ContextWindow{Richness: models.RichnessPreset{Name: "standard"}}
	for i, text := range audio {
		w.AudioEntries = append(w.AudioEntries, models.FeedItem{ID: uint64(i + 1), Text: text})
	}
	for i, app := range apps {
		w.AppHistory = append(w.AppHistory, models.AppTransition{App: app, TS: int64(i)})
	}
	return w
}

func TestCalculateScore_ErrorSignal(t *testing.T) {
	score := CalculateScore("A TypeError: cannot read 'x' of undefined appeared.", windowWith(nil, nil))
	if score.Total != 3 {
		t.Errorf("total = %d, want 3", score.Total)
	}
}

func TestCalculateScore_EachCategoryOnce(t *testing.T) {
	// Multiple error terms still contribute a single +3.
	score := CalculateScore("error failed exception crash panic", windowWith(nil, nil))
	if score.Total != 3 {
		t.Errorf("total = %d, want 3", score.Total)
	}
}

func TestCalculateScore_AllCategories(t *testing.T) {
	digest := "Build failed with a panic; there is a TODO near the workaround."
	audio := []string{"how do i fix this", "unrelated"}
	apps := []string{"Code", "Chrome", "Slack", "Terminal"}
	score := CalculateScore(digest, windowWith(audio, apps))
	if score.Total != 7 {
		t.Errorf("total = %d, want 7 (3+2+1+1)", score.Total)
	}
	if len(score.Reasons) != 4 {
		t.Errorf("reasons = %v", score.Reasons)
	}
}

func TestCalculateScore_Deterministic(t *testing.T) {
	digest := "Something failed."
	w := windowWith([]string{"help me"}, nil)
	a := CalculateScore(digest, w)
	b := CalculateScore(digest, w)
	if a.Total != b.Total || len(a.Reasons) != len(b.Reasons) {
		t.Errorf("score not deterministic: %+v vs %+v", a, b)
	}
}

func TestCalculateScore_CleanDigest(t *testing.T) {
	score := CalculateScore("The user is reading a calm article.", windowWith(nil, []string{"Chrome"}))
	if score.Total != 0 {
		t.Errorf("total = %d, want 0", score.Total)
	}
}

func TestDecide_ModeOff(t *testing.T) {
	d := Decide(GateInput{Mode: "off", HUD: "Busy", Score: Score{Total: 10}})
	if d.Escalate {
		t.Error("mode off must never escalate")
	}
}

func TestDecide_Cooldown(t *testing.T) {
	d := Decide(GateInput{
		Mode: "focus", Now: 10_000, LastEscalationTS: 5_000, CooldownMs: 30_000,
		HUD: "Busy",
	})
	if d.Escalate {
		t.Error("escalated inside cooldown")
	}
}

func TestDecide_IdleHUD(t *testing.T) {
	for _, hud := range []string{"Idle", "—"} {
		d := Decide(GateInput{Mode: "focus", HUD: hud, Score: Score{Total: 10}})
		if d.Escalate {
			t.Errorf("escalated with hud %q", hud)
		}
	}
}

func TestDecide_FocusAlwaysEscalates(t *testing.T) {
	d := Decide(GateInput{
		Mode: "focus", Now: 100_000, LastEscalationTS: 0, CooldownMs: 30_000,
		HUD: "Busy", Digest: "same", LastEscalatedDigest: "same",
	})
	if !d.Escalate {
		t.Error("focus mode must escalate regardless of dedup and score")
	}
}

func TestDecide_SelectiveDedup(t *testing.T) {
	d := Decide(GateInput{
		Mode: "selective", Now: 100_000, CooldownMs: 1,
		HUD: "Busy", Digest: "same digest", LastEscalatedDigest: "same digest",
		Score: Score{Total: 10},
	})
	if d.Escalate {
		t.Error("selective mode escalated a duplicate digest")
	}
}

func TestDecide_SelectiveThreshold(t *testing.T) {
	base := GateInput{Mode: "selective", Now: 100_000, HUD: "Busy", Digest: "fresh"}

	below := base
	below.Score = Score{Total: Threshold - 1}
	if Decide(below).Escalate {
		t.Error("escalated below threshold")
	}

	at := base
	at.Score = Score{Total: Threshold}
	if !Decide(at).Escalate {
		t.Error("did not escalate at threshold")
	}
}

func TestOCRHasError(t *testing.T) {
	if !OCRHasError("TypeError: cannot read 'x' of undefined") {
		t.Error("error OCR not detected")
	}
	if OCRHasError("everything looks fine here") {
		t.Error("clean OCR flagged")
	}
}
