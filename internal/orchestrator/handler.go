package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"scene-orchestrator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const scriptContentType = "text/x-python; charset=utf-8"

// Handler exposes orchestrator HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and
// optional Metrics. Metrics may be nil to disable metric recording (e.g. in
// tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// StartRound handles POST /workspaces/{workspace}/rounds.
// Body: { "request": "draw a circle that turns into a square" }.
// Responds 202 with the pending round; 409 while a round is in flight.
func (h *Handler) StartRound(w http.ResponseWriter, r *http.Request) {
	workspace := WorkspaceID(chi.URLParam(r, "workspace"))
	if workspace == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body struct {
		Request string `json:"request"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid round body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	round, err := h.svc.StartRound(workspace, body.Request)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoundInFlight):
			h.log.Info("round rejected, workspace busy",
				slog.String("workspace", string(workspace)))
			w.WriteHeader(http.StatusConflict)
			return
		case errors.Is(err, ErrEmptyRequest):
			w.WriteHeader(http.StatusBadRequest)
			return
		default:
			h.log.Error("start round failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	h.log.Debug("round accepted",
		slog.String("workspace", string(workspace)),
		slog.Int("index", round.Index))
	writeJSON(w, http.StatusAccepted, round)
}

// ListRounds handles GET /workspaces/{workspace}/rounds.
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	workspace := WorkspaceID(chi.URLParam(r, "workspace"))
	if workspace == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rounds, err := h.svc.Rounds(workspace)
	if err != nil {
		h.log.Error("list rounds failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// GetScript handles GET /workspaces/{workspace}/script and returns the
// workspace's current cumulative scene script.
func (h *Handler) GetScript(w http.ResponseWriter, r *http.Request) {
	workspace := WorkspaceID(chi.URLParam(r, "workspace"))
	if workspace == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	script, err := h.svc.LatestScript(workspace)
	if err != nil {
		h.log.Error("read script failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if script == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", scriptContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(script))
}

// ResetWorkspace handles DELETE /workspaces/{workspace}.
func (h *Handler) ResetWorkspace(w http.ResponseWriter, r *http.Request) {
	workspace := WorkspaceID(chi.URLParam(r, "workspace"))
	if workspace == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.ResetWorkspace(workspace); err != nil {
		if errors.Is(err, ErrRoundInFlight) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		h.log.Error("reset workspace failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("workspace reset", slog.String("workspace", string(workspace)))
	w.WriteHeader(http.StatusOK)
}

// GetSetting handles GET /settings/{key}.
func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	value, err := h.svc.repo.GetSetting(key, "")
	if err != nil {
		h.log.Error("get setting failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// PutSetting handles PUT /settings/{key}. Body: { "value": "..." }.
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.repo.SetSetting(key, body.Value); err != nil {
		h.log.Error("put setting failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
