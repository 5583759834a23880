package assistant

import (
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lightblue/fitbot-go/internal/budget"
)

// Session holds the per-conversation state: the in-memory transcript, the
// confident-answer cache, the token meter, and the debounce timestamp.
// Safe for concurrent use so one session can back both a CLI loop and an
// HTTP handler.
type Session struct {
	mu sync.Mutex

	// id keys the persisted conversation thread.
	id string

	// history is the in-memory transcript, oldest first, trimmed to the
	// context token budget so long sessions stay bounded.
	history []*schema.Message

	// cache maps canonical query → confident answer. Only answers that
	// passed the post-generation confidence check are cached.
	cache map[string]string

	// meter tracks token spend against the session budget.
	meter *budget.Meter

	// lastAsk is the time the last accepted question arrived.
	lastAsk time.Time
}

// NewSession returns an empty session with the given ID and token limit.
// A non-positive limit uses budget.DefaultSessionTokens.
func NewSession(id string, tokenLimit int) *Session {
	return &Session{
		id:    id,
		cache: make(map[string]string),
		meter: budget.NewMeter(tokenLimit),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TokensSpent returns the tokens recorded against this session so far.
func (s *Session) TokensSpent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meter.Spent()
}

// History returns a copy of the in-memory transcript, oldest first.
func (s *Session) History() []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*schema.Message, len(s.history))
	copy(out, s.history)
	return out
}

// debounceOK reports whether enough time has passed since the last accepted
// question, and records now as the new mark when it has.
func (s *Session) debounceOK(now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastAsk.IsZero() && now.Sub(s.lastAsk) < window {
		return false
	}
	s.lastAsk = now
	return true
}

// cachedAnswer returns the cached reply for a canonical query, if any.
func (s *Session) cachedAnswer(canonical string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.cache[canonical]
	return a, ok
}

// rememberAnswer caches a confident reply under its canonical query.
func (s *Session) rememberAnswer(canonical, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[canonical] = answer
}

// spend records token usage and reports whether the session budget is now
// exceeded.
func (s *Session) spend(tokens int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meter.Spend(tokens)
	return s.meter.Exceeded()
}

// appendTurn adds messages to the transcript and trims oldest-first to the
// context token budget.
func (s *Session) appendTurn(maxTokens int, msgs ...*schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
	s.history = budget.TrimHistory(nil, s.history, maxTokens)
}
