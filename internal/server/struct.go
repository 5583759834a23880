package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lightblue/fitbot-go/internal/assistant"
	"github.com/lightblue/fitbot-go/internal/browse"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// SessionTokenBudget is the per-session token limit applied to sessions
	// created by the server. Zero uses the package default.
	SessionTokenBudget int
	// MetricsRegistry receives the server's Prometheus metrics. Defaults to
	// prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface handleAsk calls to answer a question.
// *assistant.Assistant satisfies it; tests inject a fake.
type asker interface {
	// Ask runs the answering pipeline for one question in the given session.
	Ask(ctx context.Context, s *assistant.Session, question string) (*assistant.Reply, error)
}

// Server is the HTTP server that exposes the FIT assistant.
type Server struct {
	// asker answers /api/ask questions; *assistant.Assistant in production,
	// a fake in tests.
	asker asker
	// tree is the browsable FAQ navigation structure, shared by all sessions.
	tree *browse.Tree
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()

	// mu protects sessions.
	mu sync.Mutex
	// sessions maps session ID to its per-conversation state.
	sessions map[string]*serverSession
}

// serverSession bundles the assistant session with its browse cursor.
type serverSession struct {
	ask *assistant.Session

	// navMu serialises navigator transitions — Navigator itself is not
	// safe for concurrent use, and nothing stops two requests sharing a
	// session ID.
	navMu sync.Mutex
	nav   *browse.Navigator
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// SessionID identifies the conversation; empty uses a shared default
	// session.
	SessionID string `json:"sessionId"`
	// Question is the user's free-text question.
	Question string `json:"question"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the user-facing reply text.
	Answer string `json:"answer"`
	// Outcome classifies how the reply was produced: answered, refused,
	// greeting, budget, or debounced.
	Outcome string `json:"outcome"`
	// Scores are the top retrieval similarities, best first.
	Scores []float32 `json:"scores,omitempty"`
	// TokensUsed is the token spend for this reply.
	TokensUsed int `json:"tokensUsed,omitempty"`
	// LatencySeconds is the generation latency.
	LatencySeconds float64 `json:"latencySeconds,omitempty"`
	// Model names the model that produced the answer.
	Model string `json:"model,omitempty"`
	// Cached reports whether the answer came from the session cache.
	Cached bool `json:"cached,omitempty"`
	// Escalated reports whether the smart model produced the answer.
	Escalated bool `json:"escalated,omitempty"`
	// Flagged reports whether the answer was logged for curation review.
	Flagged bool `json:"flagged,omitempty"`
}

// browseRequest is the JSON body for POST /api/browse.
type browseRequest struct {
	// SessionID identifies the conversation; empty uses the default session.
	SessionID string `json:"sessionId"`
	// Action is one of "select", "back", "reset", or "show" (no-op, returns
	// the current position).
	Action string `json:"action"`
	// Option is the choice for "select" actions.
	Option string `json:"option,omitempty"`
}

// browseResponse is the JSON response for POST /api/browse.
type browseResponse struct {
	// State is the navigation level: home, category, subcategory, article.
	State string `json:"state"`
	// Path is the breadcrumb of selections made so far.
	Path []string `json:"path,omitempty"`
	// Options are the selectable choices at the current level.
	Options []string `json:"options,omitempty"`
	// Question and Answer are set at the article level.
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}
