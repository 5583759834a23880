package assistant

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lightblue/fitbot-go/internal/gate"
	"github.com/lightblue/fitbot-go/internal/llm"
	"github.com/lightblue/fitbot-go/internal/qlog"
	"github.com/lightblue/fitbot-go/internal/rag"
)

// stubRetriever returns fixed hits and counts calls.
type stubRetriever struct {
	hits  []rag.ScoredHit
	err   error
	calls int
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, _ int, _ float32) ([]rag.ScoredHit, error) {
	r.calls++
	return r.hits, r.err
}

// stubGenerator returns a fixed result and counts calls.
type stubGenerator struct {
	result llm.Result
	calls  int
}

func (g *stubGenerator) Answer(_ context.Context, _, _ string, _ float64) *llm.Result {
	g.calls++
	res := g.result
	return &res
}

func goodHits() []rag.ScoredHit {
	return []rag.ScoredHit{
		{Text: "When do I enter covers?\n\nAt the end of each shift.", Meta: map[string]string{"question": "When do I enter covers?"}, Score: 0.91},
		{Text: "What is FWCV?\n\nFood waste per cover value.", Meta: map[string]string{"question": "What is FWCV?"}, Score: 0.52},
	}
}

// newTestAssistant wires an Assistant with stubs, a temp-dir audit logger,
// and a clock that advances one second per question so debounce never
// interferes unless a test drives the clock itself.
func newTestAssistant(t *testing.T, r rag.Retriever, g llm.Generator) (*Assistant, *qlog.Logger) {
	t.Helper()
	log, err := qlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("qlog.New: %v", err)
	}
	a, err := New(&Config{Retriever: r, Generator: g, Log: log})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clock := time.Now()
	a.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return a, log
}

func Test_Ask_GreetingShortCircuitsRetrieval(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{}
	a, _ := newTestAssistant(t, r, g)

	reply, err := a.Ask(context.Background(), NewSession("s1", 0), "hello")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Outcome != OutcomeGreeting {
		t.Errorf("outcome = %s, want greeting", reply.Outcome)
	}
	if r.calls != 0 || g.calls != 0 {
		t.Errorf("greeting must not retrieve or generate (retrieve=%d generate=%d)", r.calls, g.calls)
	}
	if !strings.Contains(reply.Text, "Ask me about FIT") {
		t.Errorf("unexpected greeting text: %q", reply.Text)
	}
}

func Test_Ask_RefusesBelowGateAndLogsUnanswered(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: []rag.ScoredHit{{Text: "weak", Meta: map[string]string{"question": "weak"}, Score: 0.20}}}
	g := &stubGenerator{}
	a, log := newTestAssistant(t, r, g)

	reply, err := a.Ask(context.Background(), NewSession("s1", 0), "how do I pilot a spaceship")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Outcome != OutcomeRefused {
		t.Errorf("outcome = %s, want refused", reply.Outcome)
	}
	if g.calls != 0 {
		t.Error("refusal must not call the generator")
	}
	if !strings.Contains(reply.Text, "FIT Support") {
		t.Errorf("refusal text missing contact: %q", reply.Text)
	}

	data, err := os.ReadFile(strings.Replace(log.AnsweredPath(), qlog.AnsweredFile, qlog.UnansweredFile, 1))
	if err != nil {
		t.Fatalf("read unanswered log: %v", err)
	}
	if !strings.Contains(string(data), "pilot a spaceship") {
		t.Error("refused question not in unanswered log")
	}
}

func Test_Ask_AnswersAndCaches(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{result: llm.Result{
		Text:      "At the end of each shift [Q1].",
		Usage:     llm.Usage{TotalTokens: 120},
		Latency:   time.Second,
		ModelUsed: "gpt-4o-mini",
	}}
	a, log := newTestAssistant(t, r, g)
	s := NewSession("s1", 0)

	reply, err := a.Ask(context.Background(), s, "When do I enter covers?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Outcome != OutcomeAnswered || reply.Cached {
		t.Errorf("first ask: outcome=%s cached=%v", reply.Outcome, reply.Cached)
	}
	if reply.TokensUsed != 120 {
		t.Errorf("tokens = %d, want 120", reply.TokensUsed)
	}
	if reply.Flagged {
		t.Error("confident answer must not be flagged")
	}
	if s.TokensSpent() != 120 {
		t.Errorf("session spend = %d, want 120", s.TokensSpent())
	}

	// Same question (different casing) must hit the cache.
	again, err := a.Ask(context.Background(), s, "when DO i enter covers?")
	if err != nil {
		t.Fatalf("Ask again: %v", err)
	}
	if !again.Cached {
		t.Error("second ask should be served from cache")
	}
	if g.calls != 1 {
		t.Errorf("generator calls = %d, want 1", g.calls)
	}

	data, err := os.ReadFile(log.AnsweredPath())
	if err != nil {
		t.Fatalf("read answered log: %v", err)
	}
	// Only the generated answer is logged; cache hits are not re-logged.
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("want header + 1 answered row, got %d lines:\n%s", len(lines), data)
	}
}

func Test_Ask_UncertainAnswerIsFlaggedNotCached(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{result: llm.Result{
		Text:  "I’m not sure from the current docs.",
		Usage: llm.Usage{TotalTokens: 40},
	}}
	a, _ := newTestAssistant(t, r, g)
	s := NewSession("s1", 0)

	reply, err := a.Ask(context.Background(), s, "When do I enter covers?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !reply.Flagged {
		t.Error("uncertain answer must be flagged for review")
	}
	// The uncertain text is discarded, never shown to the user.
	if want := (&gate.Config{}).EscalationMessage(); reply.Text != want {
		t.Errorf("reply text = %q, want the escalation message %q", reply.Text, want)
	}

	// Asking again must regenerate, not serve the uncertain reply.
	if _, err := a.Ask(context.Background(), s, "When do I enter covers?"); err != nil {
		t.Fatalf("Ask again: %v", err)
	}
	if g.calls != 2 {
		t.Errorf("generator calls = %d, want 2 (uncertain answers are not cached)", g.calls)
	}
}

func Test_Ask_AuditZoneScoreIsFlagged(t *testing.T) {
	t.Parallel()
	// Score passes the 0.34 gate but sits under the 0.36 audit bar.
	r := &stubRetriever{hits: []rag.ScoredHit{{Text: "x", Meta: map[string]string{"question": "x"}, Score: 0.35}}}
	g := &stubGenerator{result: llm.Result{Text: "A plausible but weakly supported answer.", Usage: llm.Usage{TotalTokens: 10}}}
	a, _ := newTestAssistant(t, r, g)

	reply, err := a.Ask(context.Background(), NewSession("s1", 0), "borderline question")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Outcome != OutcomeAnswered {
		t.Errorf("outcome = %s, want answered", reply.Outcome)
	}
	if !reply.Flagged {
		t.Error("audit-zone answer must be flagged")
	}
	// A borderline score alone does not discard the answer.
	if reply.Text != "A plausible but weakly supported answer." {
		t.Errorf("audit-zone answer must be returned as generated, got %q", reply.Text)
	}
}

func Test_Ask_EmptyAnswerIsReplaced(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{result: llm.Result{Text: ""}}
	a, _ := newTestAssistant(t, r, g)

	reply, err := a.Ask(context.Background(), NewSession("s1", 0), "When do I enter covers?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if want := (&gate.Config{}).EscalationMessage(); reply.Text != want {
		t.Errorf("empty generation must yield the escalation message, got %q", reply.Text)
	}
	if !reply.Flagged {
		t.Error("empty generation must be flagged")
	}
}

func Test_Ask_Debounce(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{result: llm.Result{Text: "At the end of each shift [Q1]."}}
	log, err := qlog.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(&Config{Retriever: r, Generator: g, Log: log})
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Now()
	a.now = func() time.Time { return fixed } // clock frozen: second ask is too fast

	s := NewSession("s1", 0)
	if _, err := a.Ask(context.Background(), s, "When do I enter covers?"); err != nil {
		t.Fatal(err)
	}
	reply, err := a.Ask(context.Background(), s, "What is FWCV?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Outcome != OutcomeDebounced {
		t.Errorf("outcome = %s, want debounced", reply.Outcome)
	}
	if r.calls != 1 {
		t.Errorf("retriever calls = %d, want 1", r.calls)
	}
}

func Test_Ask_DailyBudgetStopsGeneration(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{result: llm.Result{Text: "answer"}}
	log, err := qlog.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// Pre-spend past a tiny daily budget.
	if err := log.Answered("earlier", nil, "earlier answer", 500, time.Second); err != nil {
		t.Fatal(err)
	}
	a, err := New(&Config{Retriever: r, Generator: g, Log: log, DailyTokenBudget: 100})
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Now()
	a.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	reply, err := a.Ask(context.Background(), NewSession("s1", 0), "When do I enter covers?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Outcome != OutcomeBudget {
		t.Errorf("outcome = %s, want budget", reply.Outcome)
	}
	if r.calls != 0 || g.calls != 0 {
		t.Error("budget stop must not retrieve or generate")
	}
}

func Test_Ask_RetrievalErrorPropagates(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{err: errors.New("qdrant unreachable")}
	g := &stubGenerator{}
	a, _ := newTestAssistant(t, r, g)

	if _, err := a.Ask(context.Background(), NewSession("s1", 0), "When do I enter covers?"); err == nil {
		t.Error("retrieval failure must propagate")
	}
}

func Test_Ask_SessionBudgetHitIsReported(t *testing.T) {
	t.Parallel()
	r := &stubRetriever{hits: goodHits()}
	g := &stubGenerator{result: llm.Result{Text: "A long enough confident answer.", Usage: llm.Usage{TotalTokens: 150}}}
	a, _ := newTestAssistant(t, r, g)
	s := NewSession("s1", 100)

	reply, err := a.Ask(context.Background(), s, "When do I enter covers?")
	if err != nil {
		t.Fatal(err)
	}
	if !reply.SessionBudgetHit {
		t.Error("crossing the session budget must be reported")
	}
}
