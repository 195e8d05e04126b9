// Package escalation decides when the current situation is worth the
// assistant's attention and delivers it when it is.
package escalation

import (
	"strings"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// Threshold is the minimum score that escalates in selective mode.
const Threshold = 3

// errorTerms in the digest are the strongest escalation signal.
var errorTerms = []string{
	"error", "failed", "failure", "exception", "crash", "traceback",
	"typeerror", "referenceerror", "syntaxerror", "cannot read",
	"undefined is not", "exit code", "segfault", "panic", "fatal",
	"enoent",
}

// questionTerms in recent audio suggest the user wants help.
var questionTerms = []string{
	"how do i", "how to", "what if", "why is", "help me", "not working",
	"stuck", "confused", "any ideas", "suggestions",
}

// codeIssueTerms in the digest mark lingering code smells.
var codeIssueTerms = []string{"todo", "fixme", "hack", "workaround", "deprecated"}

// appChurnLength is the app-history length that counts as churn.
const appChurnLength = 4

// Score is the additive escalation score with its contributing reasons.
type Score struct {
	Total   int      `json:"total"`
	Reasons []string `json:"reasons"`
}

// CalculateScore scores a digest against the context window. It is a
// pure function: each signal category contributes at most once.
func CalculateScore(digest string, window models.ContextWindow) Score {
	var score Score
	lower := strings.ToLower(digest)

	if containsAny(lower, errorTerms) {
		score.Total += 3
		score.Reasons = append(score.Reasons, "error in digest")
	}

	for _, entry := range window.AudioEntries {
		if containsAny(strings.ToLower(entry.Text), questionTerms) {
			score.Total += 2
			score.Reasons = append(score.Reasons, "question in audio")
			break
		}
	}

	if containsAny(lower, codeIssueTerms) {
		score.Total++
		score.Reasons = append(score.Reasons, "code issue in digest")
	}

	if len(window.AppHistory) >= appChurnLength {
		score.Total++
		score.Reasons = append(score.Reasons, "app churn")
	}

	return score
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// OCRHasError reports whether a screen event's OCR text matches the
// error signal, for the high-priority section of escalation messages.
func OCRHasError(ocr string) bool {
	return containsAny(strings.ToLower(ocr), errorTerms)
}

// GateInput carries everything the escalation decision depends on.
type GateInput struct {
	Mode                string
	Now                 int64
	LastEscalationTS    int64
	CooldownMs          int64
	HUD                 string
	Digest              string
	LastEscalatedDigest string
	Score               Score
}

// Decision is the gate's verdict.
type Decision struct {
	Escalate bool
	Score    Score
}

// Decide applies the mode-aware escalation gate. Dedup in selective
// mode compares digests exact-equal.
func Decide(in GateInput) Decision {
	d := Decision{Score: in.Score}
	switch {
	case in.Mode == "off":
		return d
	case in.LastEscalationTS > 0 && in.Now-in.LastEscalationTS < in.CooldownMs:
		return d
	case in.HUD == "Idle" || in.HUD == "—":
		return d
	case in.Mode == "focus" || in.Mode == "rich":
		d.Escalate = true
		return d
	case in.Mode == "selective":
		if in.Digest == in.LastEscalatedDigest {
			return d
		}
		d.Escalate = in.Score.Total >= Threshold
		return d
	}
	return d
}
