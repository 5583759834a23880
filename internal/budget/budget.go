// Package budget provides token budget estimation and enforcement for the
// assistant. Because the assistant supports multiple LLM backends with
// different tokenizers, estimation uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
//
// Two spend limits are enforced: a per-session limit that soft-warns the
// user, and a daily limit across all sessions that hard-stops generation.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-4o-mini) while leaving room for the output.
	DefaultMaxContextTokens = 6000

	// DefaultSessionTokens is the per-session spend limit. Crossing it
	// produces a warning, not a refusal — a single session rarely needs
	// more unless it is being scripted.
	DefaultSessionTokens = 30000

	// DefaultDailyTokens is the across-sessions daily spend limit.
	// Crossing it stops generation until the next UTC day.
	DefaultDailyTokens = 300000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until the total
// estimated token count of fixed + history fits within maxTokens. fixed
// contains messages that must not be trimmed (system prompt, FAQ context,
// current question). history contains prior conversation turns that may be
// dropped oldest-first.
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned (fixed messages are never dropped
// here — callers should warn separately if fixed alone exceeds the budget).
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)

	// History is typically short; a linear scan dropping oldest-first is
	// clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}

// Meter tracks actual token spend against a limit. The zero value is not
// usable — construct with NewMeter. Meter is not safe for concurrent use;
// each session owns its own.
type Meter struct {
	limit int
	spent int
}

// NewMeter returns a Meter with the given limit. Non-positive limits fall
// back to DefaultSessionTokens.
func NewMeter(limit int) *Meter {
	if limit <= 0 {
		limit = DefaultSessionTokens
	}
	return &Meter{limit: limit}
}

// Spend records n tokens of usage. Negative values are ignored.
func (m *Meter) Spend(n int) {
	if n > 0 {
		m.spent += n
	}
}

// Spent returns the total tokens recorded so far.
func (m *Meter) Spent() int { return m.spent }

// Limit returns the configured spend limit.
func (m *Meter) Limit() int { return m.limit }

// Exceeded reports whether recorded spend has crossed the limit.
func (m *Meter) Exceeded() bool { return m.spent > m.limit }
