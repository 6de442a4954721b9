package orchestrator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scene-orchestrator/internal/generator"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T) (*Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(&generator.MockClient{}, &fakeRenderer{})
	return NewHandler(svc, testLogger(), nil), svc
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/workspaces/{workspace}", func(r chi.Router) {
		r.Post("/rounds", h.StartRound)
		r.Get("/rounds", h.ListRounds)
		r.Get("/script", h.GetScript)
	})
	r.Delete("/workspaces/{workspace}", h.ResetWorkspace)
	r.Get("/settings/{key}", h.GetSetting)
	r.Put("/settings/{key}", h.PutSetting)
	return r
}

func postRound(t *testing.T, r http.Handler, workspace, request string) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(map[string]string{"request": request})
	req := httptest.NewRequest(http.MethodPost, "/workspaces/"+workspace+"/rounds", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_StartRound_accepted(t *testing.T) {
	h, svc := newTestHandler(t)
	r := newTestRouter(h)

	rec := postRound(t, r, "ws", "draw a circle")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var round Round
	if err := json.NewDecoder(rec.Body).Decode(&round); err != nil {
		t.Fatalf("decode round: %v", err)
	}
	if round.Index != 0 || round.Workspace != "ws" {
		t.Errorf("unexpected round %+v", round)
	}
	svc.Wait("ws")
}

func TestHandler_StartRound_bad_body(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/workspaces/ws/rounds", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_StartRound_empty_request(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	if rec := postRound(t, r, "ws", "  "); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_StartRound_conflict_while_in_flight(t *testing.T) {
	gen := &slowGenerator{release: make(chan struct{})}
	svc, _ := newTestService(gen, &fakeRenderer{})
	h := NewHandler(svc, testLogger(), nil)
	r := newTestRouter(h)

	if rec := postRound(t, r, "ws", "first"); rec.Code != http.StatusAccepted {
		t.Fatalf("setup: expected 202, got %d", rec.Code)
	}
	if rec := postRound(t, r, "ws", "second"); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	close(gen.release)
	svc.Wait("ws")
}

func TestHandler_ListRounds(t *testing.T) {
	h, svc := newTestHandler(t)
	r := newTestRouter(h)

	postRound(t, r, "ws", "draw a circle")
	svc.Wait("ws")

	req := httptest.NewRequest(http.MethodGet, "/workspaces/ws/rounds", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rounds []Round
	if err := json.NewDecoder(rec.Body).Decode(&rounds); err != nil {
		t.Fatalf("decode rounds: %v", err)
	}
	if len(rounds) != 1 || rounds[0].MediaPath == "" {
		t.Errorf("expected one completed round, got %+v", rounds)
	}
}

func TestHandler_GetScript(t *testing.T) {
	h, svc := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/workspaces/ws/script", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any round, got %d", rec.Code)
	}

	postRound(t, r, "ws", "draw a circle")
	svc.Wait("ws")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workspaces/ws/script", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != scriptContentType {
		t.Errorf("expected %q content type, got %q", scriptContentType, ct)
	}
	if !strings.Contains(rec.Body.String(), "class GeneratedScene(Scene)") {
		t.Errorf("expected scene script body, got %q", rec.Body.String())
	}
}

func TestHandler_ResetWorkspace(t *testing.T) {
	h, svc := newTestHandler(t)
	r := newTestRouter(h)

	postRound(t, r, "ws", "draw a circle")
	svc.Wait("ws")

	req := httptest.NewRequest(http.MethodDelete, "/workspaces/ws", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workspaces/ws/script", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after reset, got %d", rec.Code)
	}
}

func TestHandler_settings_round_trip(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	b, _ := json.Marshal(map[string]string{"value": "l"})
	req := httptest.NewRequest(http.MethodPut, "/settings/render_quality", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/render_quality", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode setting: %v", err)
	}
	if got["value"] != "l" {
		t.Errorf("expected value l, got %q", got["value"])
	}
}
