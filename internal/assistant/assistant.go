// Package assistant orchestrates the full question-answering pipeline:
// debounce → greeting shortcut → daily budget → answer cache → retrieval →
// confidence gate → context assembly → generation → post-generation audit →
// logging. Every question receives a reply; failures degrade to the fixed
// escalation message rather than surfacing errors to the user.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lightblue/fitbot-go/internal/budget"
	"github.com/lightblue/fitbot-go/internal/gate"
	"github.com/lightblue/fitbot-go/internal/llm"
	"github.com/lightblue/fitbot-go/internal/logging"
	"github.com/lightblue/fitbot-go/internal/qlog"
	"github.com/lightblue/fitbot-go/internal/rag"
	"github.com/lightblue/fitbot-go/internal/store"
	"github.com/lightblue/fitbot-go/internal/textnorm"
)

// DefaultDebounce is the minimum gap between accepted questions per session.
const DefaultDebounce = 750 * time.Millisecond

// Outcome classifies how a reply was produced, for logging and metrics.
type Outcome string

const (
	// OutcomeAnswered is a generated (or cached) answer.
	OutcomeAnswered Outcome = "answered"
	// OutcomeRefused is the confidence-gate escalation path.
	OutcomeRefused Outcome = "refused"
	// OutcomeGreeting is the greeting shortcut.
	OutcomeGreeting Outcome = "greeting"
	// OutcomeBudget is the daily-budget stop.
	OutcomeBudget Outcome = "budget"
	// OutcomeDebounced is a question rejected for arriving too fast.
	OutcomeDebounced Outcome = "debounced"
)

// Reply is the result of one Ask call. Text is always set.
type Reply struct {
	// Text is the user-facing reply.
	Text string
	// Outcome classifies the path that produced Text.
	Outcome Outcome
	// Scores are the retrieval similarities, best first, up to three.
	Scores []float32
	// TokensUsed is the token spend for this reply (zero for shortcuts).
	TokensUsed int
	// Latency is the generation latency (zero for shortcuts).
	Latency time.Duration
	// ModelUsed names the model that produced the answer, if any.
	ModelUsed string
	// Cached reports whether the answer came from the session cache.
	Cached bool
	// Escalated reports whether the smart model produced the answer.
	Escalated bool
	// Flagged reports whether the answer was logged for curation review.
	Flagged bool
	// SessionBudgetHit reports whether this reply crossed the session
	// token budget. Informational — further questions are still served.
	SessionBudgetHit bool
	// Err carries the generation error when Text is a degraded reply.
	// Diagnostic only, never shown inline to the user.
	Err error
}

// budgetReachedText is shown when the daily token budget is spent.
const budgetReachedText = "Daily AI budget is reached. Please try again tomorrow."

// debounceText is shown when questions arrive faster than the debounce window.
const debounceText = "Please wait a moment before asking again."

// Config wires an Assistant's collaborators and knobs.
type Config struct {
	// Retriever fetches scored FAQ hits. Required.
	Retriever rag.Retriever

	// Generator produces answers from assembled context. Required.
	Generator llm.Generator

	// Log is the audit logger. Required.
	Log *qlog.Logger

	// History optionally persists conversation turns across restarts.
	History store.ConversationStore

	// Gate holds the confidence thresholds. Zero value uses defaults.
	Gate gate.Config

	// TopK is the number of hits to retrieve (default rag.DefaultTopK).
	TopK int

	// MaxContextChars bounds the assembled context (default
	// gate.DefaultMaxContextChars).
	MaxContextChars int

	// MaxContextTokens bounds the in-memory session transcript (default
	// budget.DefaultMaxContextTokens).
	MaxContextTokens int

	// DailyTokenBudget stops generation for the day once crossed
	// (default budget.DefaultDailyTokens).
	DailyTokenBudget int

	// Debounce is the minimum gap between questions (default
	// DefaultDebounce).
	Debounce time.Duration
}

// Assistant answers FAQ questions for any number of sessions. Stateless
// apart from its collaborators — all per-conversation state lives in the
// Session passed to Ask.
type Assistant struct {
	retriever    rag.Retriever
	generator    llm.Generator
	log          *qlog.Logger
	history      store.ConversationStore
	gate         gate.Config
	topK         int
	maxCtxChars  int
	maxCtxTokens int
	dailyBudget  int
	debounce     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New constructs an Assistant from the provided Config.
func New(cfg *Config) (*Assistant, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("assistant: Retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("assistant: Generator must not be nil")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("assistant: Log must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	maxChars := cfg.MaxContextChars
	if maxChars <= 0 {
		maxChars = gate.DefaultMaxContextChars
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}
	daily := cfg.DailyTokenBudget
	if daily <= 0 {
		daily = budget.DefaultDailyTokens
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Assistant{
		retriever:    cfg.Retriever,
		generator:    cfg.Generator,
		log:          cfg.Log,
		history:      cfg.History,
		gate:         cfg.Gate,
		topK:         topK,
		maxCtxChars:  maxChars,
		maxCtxTokens: maxTokens,
		dailyBudget:  daily,
		debounce:     debounce,
		now:          time.Now,
	}, nil
}

// Ask runs the full pipeline for one question. The returned Reply always
// has Text set; err is reserved for retrieval-layer failures with no
// defined recovery (storage down, embedding backend unreachable).
func (a *Assistant) Ask(ctx context.Context, s *Session, question string) (*Reply, error) {
	logger := logging.FromContext(ctx)

	if !s.debounceOK(a.now(), a.debounce) {
		return &Reply{Text: debounceText, Outcome: OutcomeDebounced}, nil
	}

	canonical := textnorm.CanonicalQuery(question)

	if gate.IsGreeting(question) {
		reply := &Reply{Text: gate.GreetingReply(), Outcome: OutcomeGreeting}
		a.recordTurn(ctx, s, question, reply.Text)
		return reply, nil
	}

	spentToday, err := a.log.TokensToday()
	if err != nil {
		logger.Warn("failed to read daily token spend", slog.Any("error", err))
	}
	if spentToday > a.dailyBudget {
		reply := &Reply{Text: budgetReachedText, Outcome: OutcomeBudget}
		a.recordTurn(ctx, s, question, reply.Text)
		return reply, nil
	}

	if cached, ok := s.cachedAnswer(canonical); ok {
		reply := &Reply{Text: cached, Outcome: OutcomeAnswered, Cached: true}
		a.recordTurn(ctx, s, question, reply.Text)
		return reply, nil
	}

	hits, err := a.retriever.Retrieve(ctx, question, a.topK, a.gate.MinSim)
	if err != nil {
		return nil, fmt.Errorf("assistant: retrieval failed: %w", err)
	}
	scores := gate.TopScores(hits, 3)

	if a.gate.Decide(hits) == gate.Refuse {
		reply := &Reply{Text: a.gate.EscalationMessage(), Outcome: OutcomeRefused, Scores: scores}
		if err := a.log.Unanswered(question, scores); err != nil {
			logger.Warn("failed to write unanswered log", slog.Any("error", err))
		}
		a.recordTurn(ctx, s, question, reply.Text)
		return reply, nil
	}

	ctxText, used := gate.Assemble(hits, a.maxCtxChars)
	logger.Debug("assembled context",
		slog.Int("blocks", used),
		slog.Int("chars", len(ctxText)),
		slog.Any("top_score", hits[0].Score))

	topScore := hits[0].Score
	res := a.generator.Answer(ctx, question, ctxText, float64(topScore))
	if res.Err != nil {
		logger.Warn("generation degraded", slog.String("model", res.ModelUsed), slog.Any("error", res.Err))
	}

	reply := &Reply{
		Text:       res.Text,
		Outcome:    OutcomeAnswered,
		Scores:     scores,
		TokensUsed: res.Usage.TotalTokens,
		Latency:    res.Latency,
		ModelUsed:  res.ModelUsed,
		Escalated:  res.Escalated,
		Err:        res.Err,
	}
	reply.SessionBudgetHit = s.spend(res.Usage.TotalTokens)

	// The audit pass: weakly supported or uncertain answers also land in
	// the unanswered log so curators see the gap.
	if a.gate.NeedsAudit(res.Text, topScore) {
		reply.Flagged = true
		if err := a.log.Unanswered(question, scores); err != nil {
			logger.Warn("failed to write unanswered log", slog.Any("error", err))
		}
	}

	// An empty or uncertain generation is never shown to the user — it is
	// discarded in favour of the escalation message. Answers that are
	// merely in the audit zone by score are returned as generated.
	if a.gate.LowConfidenceText(res.Text) {
		reply.Text = a.gate.EscalationMessage()
	}
	if err := a.log.Answered(question, scores, res.Text, res.Usage.TotalTokens, res.Latency); err != nil {
		logger.Warn("failed to write answered log", slog.Any("error", err))
	}

	if res.Text != "" && !a.gate.LowConfidenceText(res.Text) {
		s.rememberAnswer(canonical, res.Text)
	}

	a.recordTurn(ctx, s, question, reply.Text)
	return reply, nil
}

// recordTurn appends the question/reply pair to the in-memory transcript
// and, when a conversation store is configured, persists it (non-fatal on
// error).
func (a *Assistant) recordTurn(ctx context.Context, s *Session, question, reply string) {
	s.appendTurn(a.maxCtxTokens, schema.UserMessage(question), schema.AssistantMessage(reply, nil))

	if a.history == nil {
		return
	}
	logger := logging.FromContext(ctx)
	if err := a.history.Append(ctx, s.ID(), store.RoleUser, question); err != nil {
		logger.Warn("history: failed to persist user message", slog.Any("error", err))
	}
	if err := a.history.Append(ctx, s.ID(), store.RoleAssistant, reply); err != nil {
		logger.Warn("history: failed to persist assistant message", slog.Any("error", err))
	}
}
