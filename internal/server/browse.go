package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lightblue/fitbot-go/internal/logging"
)

// handleBrowse handles POST /api/browse: button-driven navigation through
// the FAQ category tree. Each request applies one transition to the
// session's cursor and returns the resulting position. Unknown options are
// a client error; the cursor stays put.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req browseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess := s.session(req.SessionID)
	sess.navMu.Lock()
	defer sess.navMu.Unlock()
	nav := sess.nav

	switch req.Action {
	case "select":
		if req.Option == "" {
			http.Error(w, "option is required for select", http.StatusBadRequest)
			return
		}
		if err := nav.Select(req.Option); err != nil {
			log.Warn("browse: invalid selection",
				slog.String("option", req.Option),
				slog.String("state", nav.State().String()),
			)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	case "back":
		nav.Back()
	case "reset":
		nav.Reset()
	case "", "show":
		// Position query only.
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	resp := browseResponse{
		State:   nav.State().String(),
		Path:    nav.Path(),
		Options: nav.Options(),
	}
	if art, ok := nav.Article(); ok {
		resp.Question = art.Question
		resp.Answer = art.Answer
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("browse encode error", slog.Any("error", err))
	}
}
