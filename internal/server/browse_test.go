package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// postBrowse sends one browse action to the handler and decodes the response.
func postBrowse(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, browseResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/browse", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleBrowse(w, req)

	var resp browseResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return w, resp
}

// TestHandleBrowse_Show verifies that an empty action returns the home level
// with the category list.
func TestHandleBrowse_Show(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w, resp := postBrowse(t, s, `{"sessionId":"b1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if resp.State != "home" {
		t.Errorf("state: expected home, got %q", resp.State)
	}
	if len(resp.Options) != 2 {
		t.Fatalf("expected 2 categories, got %v", resp.Options)
	}
	if resp.Options[0] != "Definitions" || resp.Options[1] != "Covers" {
		t.Errorf("categories out of order: %v", resp.Options)
	}
}

// TestHandleBrowse_Descent walks home → category → subcategory → article and
// checks each level's state, breadcrumb, and options.
func TestHandleBrowse_Descent(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	_, resp := postBrowse(t, s, `{"sessionId":"b2","action":"select","option":"Covers"}`)
	if resp.State != "category" {
		t.Fatalf("after category select: expected state category, got %q", resp.State)
	}
	if len(resp.Options) != 1 || resp.Options[0] != "Logging" {
		t.Fatalf("subcategories: got %v", resp.Options)
	}

	_, resp = postBrowse(t, s, `{"sessionId":"b2","action":"select","option":"Logging"}`)
	if resp.State != "subcategory" {
		t.Fatalf("after subcategory select: expected state subcategory, got %q", resp.State)
	}
	if len(resp.Options) != 2 {
		t.Fatalf("questions: got %v", resp.Options)
	}

	_, resp = postBrowse(t, s, `{"sessionId":"b2","action":"select","option":"When do I enter covers?"}`)
	if resp.State != "article" {
		t.Fatalf("after article select: expected state article, got %q", resp.State)
	}
	if resp.Answer != "Enter covers daily before close." {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if len(resp.Path) != 3 {
		t.Errorf("breadcrumb: expected 3 entries, got %v", resp.Path)
	}
}

// TestHandleBrowse_BackAndReset verifies back steps up one level and reset
// returns to home.
func TestHandleBrowse_BackAndReset(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	postBrowse(t, s, `{"sessionId":"b3","action":"select","option":"Covers"}`)
	postBrowse(t, s, `{"sessionId":"b3","action":"select","option":"Logging"}`)

	_, resp := postBrowse(t, s, `{"sessionId":"b3","action":"back"}`)
	if resp.State != "category" {
		t.Errorf("after back: expected state category, got %q", resp.State)
	}

	_, resp = postBrowse(t, s, `{"sessionId":"b3","action":"reset"}`)
	if resp.State != "home" {
		t.Errorf("after reset: expected state home, got %q", resp.State)
	}
}

// TestHandleBrowse_InvalidSelection verifies an unknown option returns 400
// and leaves the cursor where it was.
func TestHandleBrowse_InvalidSelection(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w, _ := postBrowse(t, s, `{"sessionId":"b4","action":"select","option":"Nonexistent"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown option, got %d", w.Code)
	}

	w, resp := postBrowse(t, s, `{"sessionId":"b4","action":"show"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.State != "home" {
		t.Errorf("cursor moved on invalid selection: state %q", resp.State)
	}
}

// TestHandleBrowse_SelectWithoutOption verifies select without an option is
// a client error.
func TestHandleBrowse_SelectWithoutOption(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w, _ := postBrowse(t, s, `{"sessionId":"b5","action":"select"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleBrowse_UnknownAction verifies unrecognized actions are rejected.
func TestHandleBrowse_UnknownAction(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w, _ := postBrowse(t, s, `{"sessionId":"b6","action":"teleport"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleBrowse_ConcurrentSameSession hammers one session's navigator
// from several goroutines; the handler must serialise the transitions and
// leave the cursor in a valid state.
func TestHandleBrowse_ConcurrentSameSession(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				body := `{"sessionId":"shared","action":"select","option":"Covers"}`
				if j%2 == 0 {
					body = `{"sessionId":"shared","action":"reset"}`
				}
				req := httptest.NewRequest(http.MethodPost, "/api/browse", strings.NewReader(body))
				s.handleBrowse(httptest.NewRecorder(), req)
			}
		}()
	}
	wg.Wait()

	w, resp := postBrowse(t, s, `{"sessionId":"shared","action":"reset"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after concurrent use, got %d", w.Code)
	}
	if resp.State != "home" {
		t.Errorf("expected state home after reset, got %q", resp.State)
	}
}

// TestHandleBrowse_SessionsIsolated verifies two sessions keep independent
// cursors.
func TestHandleBrowse_SessionsIsolated(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	postBrowse(t, s, `{"sessionId":"left","action":"select","option":"Covers"}`)

	_, resp := postBrowse(t, s, `{"sessionId":"right","action":"show"}`)
	if resp.State != "home" {
		t.Errorf("session right should still be at home, got %q", resp.State)
	}
}
