package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/haasonsaas/conductor/internal/runs"
)

type startRunRequest struct {
	ActorID       string `json:"actor_id"`
	Prompt        string `json:"prompt"`
	System        string `json:"system,omitempty"`
	Model         string `json:"model,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`

	// Wait makes the call block until the run finishes and return the
	// final record instead of the pending one.
	Wait bool `json:"wait,omitempty"`
}

// handleRuns handles POST /v1/runs (launch) and GET /v1/runs (list).
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.startRun(w, r)
	case http.MethodGet:
		s.listRuns(w, r)
	default:
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := &runs.StartRequest{
		ActorID:       req.ActorID,
		Prompt:        req.Prompt,
		System:        req.System,
		Model:         req.Model,
		MaxIterations: req.MaxIterations,
	}

	var err error
	var run any
	if req.Wait {
		run, err = s.recorder.Run(r.Context(), start)
	} else {
		run, err = s.recorder.Start(r.Context(), start)
	}
	if err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(run)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	list, total, err := s.recorder.List(r.Context(), actorID, limit, offset)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	s.jsonResponse(w, map[string]any{
		"runs":  list,
		"total": total,
	})
}

// handleRunByID routes /v1/runs/{id}, /v1/runs/{id}/events, and
// /v1/runs/{id}/cancel.
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		s.jsonError(w, "run id required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		run, err := s.recorder.Get(r.Context(), id)
		if err != nil {
			s.notFoundOr500(w, err)
			return
		}
		s.jsonResponse(w, run)
	case action == "events" && r.Method == http.MethodGet:
		events, err := s.recorder.Events(r.Context(), id)
		if err != nil {
			s.notFoundOr500(w, err)
			return
		}
		s.jsonResponse(w, map[string]any{"events": events})
	case action == "cancel" && r.Method == http.MethodPost:
		s.jsonResponse(w, map[string]bool{"cancelled": s.recorder.Cancel(id)})
	default:
		s.jsonError(w, "not found", http.StatusNotFound)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
