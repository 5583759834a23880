// Package llm turns a question plus assembled FAQ context into a final
// answer using an Eino chat model. Generation never fails the request:
// transport or provider errors degrade to a fixed uncertainty reply with
// the underlying error preserved for diagnostics.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// DefaultTimeout bounds a single model call.
	DefaultTimeout = 30 * time.Second

	// DefaultEscalateMinScore is the minimum top retrieval score required
	// before an uncertain primary answer is retried on the smart model.
	// Below this the retrieval itself is weak and a stronger model would
	// only hallucinate more confidently.
	DefaultEscalateMinScore = 0.45

	// tempErrorText is returned verbatim when the model call fails.
	tempErrorText = "I’m not sure from the current docs (temporary error). Please try again."
)

// systemPrompt establishes the assistant persona and grounding rules.
// Answers must come from the supplied context blocks and cite them as [Q#].
const systemPrompt = `You are FIT Assistant. Answer ONLY about FIT topics (FWCV, covers, waste logging, shift settings, app use). ` +
	`Use the provided context and cite facts as [Q#]. ` +
	`If the context is missing or unrelated, reply: "I’m not sure from the current docs."`

// Usage records token consumption for a single answer. When escalation
// produces the final answer both calls are summed.
type Usage struct {
	// PromptTokens is the number of input tokens consumed.
	PromptTokens int
	// CompletionTokens is the number of output tokens generated.
	CompletionTokens int
	// TotalTokens is the combined token count.
	TotalTokens int
}

// add returns the element-wise sum of two usage records.
func (u Usage) add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Result is the outcome of one answer generation, including the escalation
// pass when one ran.
type Result struct {
	// Text is the answer text shown to the user. Never empty — errors
	// degrade to a fixed uncertainty reply.
	Text string

	// Usage is the token consumption across all model calls made.
	Usage Usage

	// Latency is the wall-clock time spent in model calls.
	Latency time.Duration

	// ModelUsed names the model that produced Text.
	ModelUsed string

	// Escalated reports whether the smart model's answer was kept.
	Escalated bool

	// Err holds the underlying model error when Text is the degraded
	// reply. Diagnostic only — callers still present Text.
	Err error
}

// Generator produces an answer from a question and pre-assembled context.
type Generator interface {
	// Answer generates a reply for the question grounded in ctxText.
	// topScore is the best retrieval similarity for the question and
	// gates escalation to the smart model.
	Answer(ctx context.Context, question, ctxText string, topScore float64) *Result
}

// Config configures a ChatGenerator.
type Config struct {
	// Primary is the model used for every answer. Required.
	Primary model.BaseChatModel

	// PrimaryName labels the primary model in results and logs.
	PrimaryName string

	// Smart is the optional stronger model used when the primary answer
	// comes back uncertain on a well-retrieved query. Nil disables
	// escalation.
	Smart model.BaseChatModel

	// SmartName labels the smart model in results and logs.
	SmartName string

	// Timeout bounds each individual model call. Defaults to
	// DefaultTimeout when zero.
	Timeout time.Duration

	// EscalateMinScore overrides DefaultEscalateMinScore when positive.
	EscalateMinScore float64
}

// ChatGenerator implements Generator on top of Eino chat models.
type ChatGenerator struct {
	primary          model.BaseChatModel
	primaryName      string
	smart            model.BaseChatModel
	smartName        string
	timeout          time.Duration
	escalateMinScore float64
}

// NewChatGenerator constructs a ChatGenerator from the provided Config.
func NewChatGenerator(cfg *Config) (*ChatGenerator, error) {
	if cfg == nil || cfg.Primary == nil {
		return nil, fmt.Errorf("llm: Primary chat model must not be nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	minScore := cfg.EscalateMinScore
	if minScore <= 0 {
		minScore = DefaultEscalateMinScore
	}
	return &ChatGenerator{
		primary:          cfg.Primary,
		primaryName:      cfg.PrimaryName,
		smart:            cfg.Smart,
		smartName:        cfg.SmartName,
		timeout:          timeout,
		escalateMinScore: minScore,
	}, nil
}

// Answer generates a reply using the primary model, then retries once on
// the smart model when the primary comes back uncertain and the retrieval
// was strong enough to justify a second, more expensive pass. The smart
// answer is only kept when it is longer than the primary's — a second
// "not sure" buys nothing.
func (g *ChatGenerator) Answer(ctx context.Context, question, ctxText string, topScore float64) *Result {
	out := g.call(ctx, g.primary, g.primaryName, question, ctxText)

	if !g.shouldEscalate(out, topScore) {
		return out
	}

	retry := g.call(ctx, g.smart, g.smartName, question, ctxText)
	if len(retry.Text) <= len(out.Text) {
		out.Latency += retry.Latency
		out.Usage = out.Usage.add(retry.Usage)
		return out
	}

	retry.Usage = out.Usage.add(retry.Usage)
	retry.Latency += out.Latency
	retry.Escalated = true
	return retry
}

// shouldEscalate reports whether the primary answer warrants a smart-model
// retry: a configured smart model, an uncertain reply, and a top retrieval
// score strong enough that better reasoning could actually help.
func (g *ChatGenerator) shouldEscalate(primary *Result, topScore float64) bool {
	if g.smart == nil || g.smartName == g.primaryName {
		return false
	}
	if !strings.Contains(strings.ToLower(primary.Text), "not sure") {
		return false
	}
	return topScore >= g.escalateMinScore
}

// call performs a single bounded model invocation. Errors never propagate:
// the result carries the fixed degraded reply with Err set for diagnostics.
func (g *ChatGenerator) call(ctx context.Context, m model.BaseChatModel, name, question, ctxText string) *Result {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf(
			"Question: %s\n\nContext:\n%s\n\n"+
				"Rules:\n- Be concise and helpful.\n- Use the context and cite as [Q#].\n"+
				"- If unsure, say: 'I’m not sure from the current docs.'",
			question, ctxText)),
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	msg, err := m.Generate(callCtx, messages)
	elapsed := time.Since(start)

	if err != nil {
		return &Result{
			Text:      tempErrorText,
			Latency:   elapsed,
			ModelUsed: name,
			Err:       err,
		}
	}

	return &Result{
		Text:      strings.TrimSpace(msg.Content),
		Usage:     usageFromMessage(msg),
		Latency:   elapsed,
		ModelUsed: name,
	}
}

// usageFromMessage extracts token usage from a response message, tolerating
// backends that do not report it.
func usageFromMessage(msg *schema.Message) Usage {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return Usage{}
	}
	u := msg.ResponseMeta.Usage
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      total,
	}
}
