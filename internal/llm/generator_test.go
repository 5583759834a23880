package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel returns canned replies in order and records the prompts it
// receives. A nil reply entry produces an error.
type scriptedModel struct {
	replies []*schema.Message
	calls   int
	prompts []string
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	for _, msg := range in {
		m.prompts = append(m.prompts, msg.Content)
	}
	if len(m.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	if reply == nil {
		return nil, errors.New("scripted failure")
	}
	return reply, nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func reply(text string, prompt, completion int) *schema.Message {
	return &schema.Message{
		Role:    schema.Assistant,
		Content: text,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			},
		},
	}
}

func Test_Answer_UsesContextAndReportsUsage(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{replies: []*schema.Message{reply("Enter covers at the end of each shift [Q1].", 100, 20)}}
	g, err := NewChatGenerator(&Config{Primary: m, PrimaryName: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewChatGenerator() error = %v", err)
	}

	res := g.Answer(context.Background(), "When do I enter covers?", "[Q1] When do I enter covers?\nAt the end of each shift.\n\n", 0.9)

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !strings.Contains(res.Text, "[Q1]") {
		t.Errorf("answer missing citation: %q", res.Text)
	}
	if res.Usage.TotalTokens != 120 {
		t.Errorf("total tokens = %d, want 120", res.Usage.TotalTokens)
	}
	if res.ModelUsed != "gpt-4o-mini" {
		t.Errorf("model used = %q", res.ModelUsed)
	}
	if res.Escalated {
		t.Error("confident answer should not escalate")
	}

	// Both the question and the context must reach the model.
	joined := strings.Join(m.prompts, "\n")
	if !strings.Contains(joined, "When do I enter covers?") || !strings.Contains(joined, "[Q1]") {
		t.Errorf("prompt missing question or context:\n%s", joined)
	}
}

func Test_Answer_ErrorDegradesToFixedReply(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{replies: []*schema.Message{nil}}
	g, err := NewChatGenerator(&Config{Primary: m, PrimaryName: "llama3"})
	if err != nil {
		t.Fatalf("NewChatGenerator() error = %v", err)
	}

	res := g.Answer(context.Background(), "What is FWCV?", "NO_CONTEXT", 0)

	if res.Err == nil {
		t.Error("want diagnostic error on degraded reply")
	}
	if res.Text != tempErrorText {
		t.Errorf("degraded text = %q", res.Text)
	}
	if res.Usage.TotalTokens != 0 {
		t.Errorf("degraded usage = %d, want 0", res.Usage.TotalTokens)
	}
}

func Test_Answer_EscalatesUncertainAnswerOnStrongRetrieval(t *testing.T) {
	t.Parallel()
	primary := &scriptedModel{replies: []*schema.Message{reply("I’m not sure from the current docs.", 50, 10)}}
	smart := &scriptedModel{replies: []*schema.Message{reply("FWCV is food waste per cover value, the key FIT metric [Q1].", 80, 30)}}
	g, err := NewChatGenerator(&Config{
		Primary: primary, PrimaryName: "gpt-4o-mini",
		Smart: smart, SmartName: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewChatGenerator() error = %v", err)
	}

	res := g.Answer(context.Background(), "What is FWCV?", "[Q1] What is FWCV?\n...", 0.5)

	if !res.Escalated {
		t.Fatal("want escalation")
	}
	if res.ModelUsed != "gpt-4o" {
		t.Errorf("model used = %q, want gpt-4o", res.ModelUsed)
	}
	// Token usage from both passes is summed for transparency.
	if res.Usage.TotalTokens != 170 {
		t.Errorf("total tokens = %d, want 170", res.Usage.TotalTokens)
	}
	if smart.calls != 1 {
		t.Errorf("smart model calls = %d, want 1", smart.calls)
	}
}

func Test_Answer_NoEscalationBelowScoreThreshold(t *testing.T) {
	t.Parallel()
	primary := &scriptedModel{replies: []*schema.Message{reply("I’m not sure from the current docs.", 50, 10)}}
	smart := &scriptedModel{}
	g, err := NewChatGenerator(&Config{
		Primary: primary, PrimaryName: "gpt-4o-mini",
		Smart: smart, SmartName: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewChatGenerator() error = %v", err)
	}

	res := g.Answer(context.Background(), "What is FWCV?", "NO_CONTEXT", 0.44)

	if res.Escalated {
		t.Error("weak retrieval must not escalate")
	}
	if smart.calls != 0 {
		t.Errorf("smart model calls = %d, want 0", smart.calls)
	}
	if res.ModelUsed != "gpt-4o-mini" {
		t.Errorf("model used = %q", res.ModelUsed)
	}
}

func Test_Answer_KeepsPrimaryWhenSmartAnswerIsNotLonger(t *testing.T) {
	t.Parallel()
	primary := &scriptedModel{replies: []*schema.Message{reply("I’m not sure from the current docs.", 50, 10)}}
	smart := &scriptedModel{replies: []*schema.Message{reply("Not sure.", 40, 5)}}
	g, err := NewChatGenerator(&Config{
		Primary: primary, PrimaryName: "gpt-4o-mini",
		Smart: smart, SmartName: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewChatGenerator() error = %v", err)
	}

	res := g.Answer(context.Background(), "What is FWCV?", "[Q1] ...", 0.6)

	if res.Escalated {
		t.Error("shorter smart answer must not replace primary")
	}
	if res.ModelUsed != "gpt-4o-mini" {
		t.Errorf("model used = %q", res.ModelUsed)
	}
	// Both passes still count against the budget.
	if res.Usage.TotalTokens != 105 {
		t.Errorf("total tokens = %d, want 105", res.Usage.TotalTokens)
	}
}

func Test_Answer_SameModelNameDisablesEscalation(t *testing.T) {
	t.Parallel()
	primary := &scriptedModel{replies: []*schema.Message{reply("I’m not sure from the current docs.", 50, 10)}}
	smart := &scriptedModel{}
	g, err := NewChatGenerator(&Config{
		Primary: primary, PrimaryName: "gpt-4o",
		Smart: smart, SmartName: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewChatGenerator() error = %v", err)
	}

	g.Answer(context.Background(), "q", "ctx", 0.9)
	if smart.calls != 0 {
		t.Errorf("smart model calls = %d, want 0", smart.calls)
	}
}

func Test_NewChatGenerator_RequiresPrimary(t *testing.T) {
	t.Parallel()
	if _, err := NewChatGenerator(nil); err == nil {
		t.Error("nil config: want error")
	}
	if _, err := NewChatGenerator(&Config{}); err == nil {
		t.Error("nil primary: want error")
	}
}
