package gate

import (
	"strings"
	"testing"

	"github.com/lightblue/fitbot-go/internal/rag"
)

func hit(question string, score float32) rag.ScoredHit {
	return rag.ScoredHit{
		Text:  question + "\n\nsome answer body",
		Meta:  map[string]string{"question": question, "source": "faq.csv", "type": "faq"},
		Score: score,
	}
}

func Test_Decide(t *testing.T) {
	t.Parallel()
	cfg := &Config{MinSim: 0.34}
	cases := []struct {
		name string
		hits []rag.ScoredHit
		want Decision
	}{
		{"no hits", nil, Refuse},
		{"top below gate", []rag.ScoredHit{hit("q", 0.339)}, Refuse},
		{"top exactly at gate passes", []rag.ScoredHit{hit("q", 0.34)}, Answer},
		{"top above gate", []rag.ScoredHit{hit("q", 0.9)}, Answer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := cfg.Decide(tc.hits); got != tc.want {
				t.Errorf("Decide = %v, want %v", got, tc.want)
			}
		})
	}
}

func Test_IsGreeting(t *testing.T) {
	t.Parallel()
	cases := []struct {
		query string
		want  bool
	}{
		{"hello", true},
		{"  Hello ", true},
		{"hey", true},
		{"สวัสดี", true},
		{"ok", true}, // under 3 runes
		{"what is FWCV?", false},
		{"hello there, a question", false},
	}
	for _, tc := range cases {
		if got := IsGreeting(tc.query); got != tc.want {
			t.Errorf("IsGreeting(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func Test_LowConfidenceText(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", true},
		{"whitespace", "   \n ", true},
		{"too short", "Yes.", true},
		{"not sure phrase", "I’m not sure from the current docs.", true},
		{"case insensitive", "I am NOT SURE about that, honestly speaking.", true},
		{"dont know", "I don't know the answer to that question.", true},
		{"cannot answer", "I cannot answer this from the context given.", true},
		{"confident", "FWCV is Food Waste per Cover Value, logged per shift.", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := cfg.LowConfidenceText(tc.text); got != tc.want {
				t.Errorf("LowConfidenceText(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func Test_NeedsAudit_StricterBar(t *testing.T) {
	t.Parallel()
	cfg := &Config{MinSim: 0.34, AuditFloor: 0.36}
	confident := "FWCV is Food Waste per Cover Value, logged per shift."

	// Passed the gate but sits in the audit zone [0.34, 0.36).
	if !cfg.NeedsAudit(confident, 0.35) {
		t.Error("score 0.35 should need audit under 0.36 bar")
	}
	if cfg.NeedsAudit(confident, 0.36) {
		t.Error("score 0.36 meets the audit bar (inclusive)")
	}
	// Low-confidence text always needs audit, even with a high score.
	if !cfg.NeedsAudit("I’m not sure from the current docs.", 0.95) {
		t.Error("uncertain text should need audit regardless of score")
	}
}

func Test_NeedsAudit_BarNeverBelowGate(t *testing.T) {
	t.Parallel()
	// When MinSim exceeds the audit floor, the bar follows MinSim.
	cfg := &Config{MinSim: 0.5, AuditFloor: 0.36}
	confident := "FWCV is Food Waste per Cover Value, logged per shift."
	if !cfg.NeedsAudit(confident, 0.45) {
		t.Error("score under max(MinSim, AuditFloor) should need audit")
	}
	if cfg.NeedsAudit(confident, 0.5) {
		t.Error("score at max(MinSim, AuditFloor) should not need audit")
	}
}

func Test_EscalationMessage_NamesContact(t *testing.T) {
	t.Parallel()
	cfg := &Config{SupportContact: "help@example.com"}
	msg := cfg.EscalationMessage()
	if !strings.Contains(msg, "help@example.com") {
		t.Errorf("escalation message missing contact: %q", msg)
	}
	if (&Config{}).EscalationMessage() == msg {
		t.Error("default contact should differ from overridden one")
	}
}

func Test_TopScores(t *testing.T) {
	t.Parallel()
	hits := []rag.ScoredHit{hit("a", 0.9), hit("b", 0.5)}
	if got := TopScores(hits, 3); len(got) != 2 || got[0] != 0.9 || got[1] != 0.5 {
		t.Errorf("TopScores = %v", got)
	}
	if got := TopScores(nil, 3); len(got) != 0 {
		t.Errorf("TopScores(nil) = %v, want empty", got)
	}
}
