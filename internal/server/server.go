// Package server implements the HTTP server that exposes the FIT assistant:
// free-text questions on POST /api/ask, manual FAQ navigation on
// POST /api/browse, liveness/readiness probes, and Prometheus metrics.
// The server is started by the `fitbot serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lightblue/fitbot-go/internal/assistant"
	"github.com/lightblue/fitbot-go/internal/browse"
	"github.com/lightblue/fitbot-go/internal/logging"
)

// defaultSessionID keys the shared session used by clients that do not
// supply their own.
const defaultSessionID = "default"

// New constructs a Server from the provided assistant, browse tree, and
// config. tree may be nil when the FAQ source carries no category columns —
// /api/browse then always reports an empty home level.
func New(asst *assistant.Assistant, tree *browse.Tree, cfg *Config) (*Server, error) {
	if asst == nil {
		return nil, fmt.Errorf("server: assistant must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Generation plus a possible smart-model retry can take a while.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	if tree == nil {
		tree = browse.NewTree(nil)
	}

	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = defaultRateLimit
	}
	rateBurst := cfg.RateBurst
	if rateBurst == 0 {
		rateBurst = defaultRateBurst
	}

	s := &Server{
		asker:    asst,
		tree:     tree,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
		sessions: make(map[string]*serverSession),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: FITBOT_API_KEY not set — API authentication is disabled")
	}

	rl, stopRL := newRateLimiter(rateLimit, rateBurst, s.log)
	s.stopRL = stopRL

	protect := func(h http.Handler) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", s.instrument("ask", protect(http.HandlerFunc(s.handleAsk))))
	mux.Handle("POST /api/browse", s.instrument("browse", protect(http.HandlerFunc(s.handleBrowse))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		fmt.Printf("fitbot server listening on http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		if s.stopRL != nil {
			s.stopRL()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// session returns the state for the given session ID, creating it on first
// use. An empty ID maps to the shared default session.
func (s *Server) session(id string) *serverSession {
	if id == "" {
		id = defaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &serverSession{
			ask: assistant.NewSession(id, s.cfg.SessionTokenBudget),
			nav: browse.NewNavigator(s.tree),
		}
		s.sessions[id] = sess
	}
	return sess
}

// handleAsk handles POST /api/ask: it runs the full answering pipeline and
// returns the reply as JSON. Pipeline shortcuts (greeting, budget, refusal)
// are normal 200 responses distinguished by the outcome field; only
// retrieval-layer failures produce a 500.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	sess := s.session(req.SessionID)

	s.metrics.askInFlight.Inc()
	defer s.metrics.askInFlight.Dec()

	start := time.Now()
	reply, err := s.asker.Ask(r.Context(), sess.ask, req.Question)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		s.metrics.askDurationSeconds.WithLabelValues("error").Observe(elapsed.Seconds())
		log.Error("ask failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	outcome := string(reply.Outcome)
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	s.metrics.askTokensTotal.Add(float64(reply.TokensUsed))

	resp := askResponse{
		Answer:         reply.Text,
		Outcome:        outcome,
		Scores:         reply.Scores,
		TokensUsed:     reply.TokensUsed,
		LatencySeconds: reply.Latency.Seconds(),
		Model:          reply.ModelUsed,
		Cached:         reply.Cached,
		Escalated:      reply.Escalated,
		Flagged:        reply.Flagged,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("ask encode error", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
