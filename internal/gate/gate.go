// Package gate implements the confidence gate that decides whether a
// retrieval result is trustworthy enough to answer from, and the context
// assembler that packs ranked hits into a size-bounded prompt context.
// The gate is stateless — every decision is a pure function of its inputs
// and the configured thresholds.
package gate

import (
	"fmt"
	"strings"

	"github.com/lightblue/fitbot-go/internal/rag"
	"github.com/lightblue/fitbot-go/internal/textnorm"
)

// Threshold defaults. All thresholds are inclusive lower bounds:
// score >= MinSim passes, not >.
const (
	// DefaultMinSim is the minimum top-hit similarity required to attempt
	// an answer at all.
	DefaultMinSim = 0.34

	// DefaultAuditFloor is the floor for the post-answer audit threshold.
	// The effective audit bar is max(MinSim, AuditFloor) — slightly
	// stricter than the pass/fail gate, producing an audit zone of
	// borderline answers that are returned to the user but still logged
	// for review.
	DefaultAuditFloor = 0.36

	// DefaultMinAnswerLen is the minimum generated-answer length below
	// which the text is treated as low confidence.
	DefaultMinAnswerLen = 10

	// DefaultSupportContact is the human-support address named in the
	// escalation message.
	DefaultSupportContact = "fit@lightblueconsulting.com"
)

// uncertaintyPhrases are case-insensitive substrings that mark a generated
// answer as low confidence regardless of its retrieval score.
var uncertaintyPhrases = []string{
	"not sure",
	"don't know",
	"do not know",
	"cannot answer",
	"can't answer",
	"unable to answer",
	"no context",
}

// greetings are canonical-form queries answered with the fixed usage hint
// before any retrieval work. The Thai forms match the deployed user base.
var greetings = map[string]bool{
	"hi":      true,
	"hello":   true,
	"hey":     true,
	"สวัสดี":  true,
	"หวัดดี":  true,
}

// Decision is the gate's three-way outcome for a query.
type Decision int

const (
	// Answer means the top hit cleared the similarity gate — proceed to
	// context assembly and generation.
	Answer Decision = iota

	// Refuse means there were no hits, or the top score missed the gate —
	// return the escalation message and log the query as unanswered.
	Refuse

	// Greet means the query is a greeting or too short to retrieve on —
	// return the fixed greeting reply without touching the index.
	Greet
)

// String returns the decision label used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Answer:
		return "answer"
	case Refuse:
		return "refuse"
	case Greet:
		return "greet"
	default:
		return "unknown"
	}
}

// Config holds the gate thresholds. The zero value is usable: every field
// falls back to its default.
type Config struct {
	// MinSim is the pass/fail similarity gate (default 0.34, inclusive).
	MinSim float32

	// AuditFloor is the floor of the post-answer audit threshold
	// (default 0.36). Kept independently configurable from MinSim — the
	// two bars serve different purposes and must never be collapsed into
	// one knob.
	AuditFloor float32

	// MinAnswerLen is the minimum generated-answer length (default 10).
	MinAnswerLen int

	// SupportContact is the human-support address in the escalation
	// message (default DefaultSupportContact).
	SupportContact string
}

// minSim returns the effective pass/fail threshold.
func (c *Config) minSim() float32 {
	if c.MinSim > 0 {
		return c.MinSim
	}
	return DefaultMinSim
}

// auditBar returns the effective audit threshold: max(MinSim, AuditFloor).
func (c *Config) auditBar() float32 {
	floor := c.AuditFloor
	if floor <= 0 {
		floor = DefaultAuditFloor
	}
	if m := c.minSim(); m > floor {
		return m
	}
	return floor
}

// IsGreeting reports whether the query is a greeting or too short to carry
// retrievable intent (fewer than 3 characters in canonical form). Greeting
// queries short-circuit before any retrieval call.
func IsGreeting(query string) bool {
	q := textnorm.CanonicalQuery(query)
	return greetings[q] || len([]rune(q)) < 3
}

// Decide inspects the ranked hits and returns the gate outcome. A nil or
// empty hit list, or a top score below MinSim, refuses; otherwise the
// query proceeds to answer. The greeting shortcut is checked by the caller
// before retrieval via IsGreeting — Decide never sees greetings.
func (c *Config) Decide(hits []rag.ScoredHit) Decision {
	if len(hits) == 0 || hits[0].Score < c.minSim() {
		return Refuse
	}
	return Answer
}

// LowConfidenceText is the post-hoc check on generated text: empty, under
// the minimum length, or containing any uncertainty phrase (case-insensitive
// substring). A low-confidence answer is discarded and replaced with the
// escalation message regardless of its retrieval score.
func (c *Config) LowConfidenceText(text string) bool {
	t := strings.TrimSpace(text)
	minLen := c.MinAnswerLen
	if minLen <= 0 {
		minLen = DefaultMinAnswerLen
	}
	if len([]rune(t)) < minLen {
		return true
	}
	lower := strings.ToLower(t)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// NeedsAudit reports whether an answered query must still be logged as
// unanswered for review: low-confidence text, or a top score under the
// audit bar (stricter than the pass/fail gate).
func (c *Config) NeedsAudit(text string, topScore float32) bool {
	return c.LowConfidenceText(text) || topScore < c.auditBar()
}

// EscalationMessage returns the fixed refusal text naming the support
// contact. The user never sees a raw error — this message is the only
// failure surface.
func (c *Config) EscalationMessage() string {
	contact := c.SupportContact
	if contact == "" {
		contact = DefaultSupportContact
	}
	return fmt.Sprintf(
		"I’m sorry, but I’m not able to answer this question at the moment. "+
			"Please contact our FIT Support Team for assistance.\n\n"+
			"• Contact FIT Support: %s\n", contact)
}

// GreetingReply returns the fixed reply for greeting queries.
func GreetingReply() string {
	return "Hi! Ask me about FIT (e.g., “What is FWCV?” or “When do I enter covers?”)."
}

// TopScores returns the first n hit scores, for audit logging. Fewer hits
// yield a shorter slice; no hits yield an empty one.
func TopScores(hits []rag.ScoredHit, n int) []float32 {
	if n > len(hits) {
		n = len(hits)
	}
	out := make([]float32, 0, n)
	for _, h := range hits[:n] {
		out = append(out, h.Score)
	}
	return out
}
