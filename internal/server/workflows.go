package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/haasonsaas/conductor/internal/workflow"
)

// handleWorkflows handles GET /v1/workflows.
func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	graphs := s.registry.List()
	descriptions := make([]*workflow.GraphDescription, 0, len(graphs))
	for _, g := range graphs {
		desc, err := s.registry.Describe(g.ID)
		if err != nil {
			continue
		}
		descriptions = append(descriptions, desc)
	}
	s.jsonResponse(w, map[string]any{"workflows": descriptions})
}

// handleWorkflowByID routes /v1/workflows/{id} and
// /v1/workflows/{id}/instances.
func (s *Server) handleWorkflowByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/workflows/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		s.jsonError(w, "workflow id required", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		desc, err := s.registry.Describe(id)
		if err != nil {
			s.workflowError(w, err)
			return
		}
		s.jsonResponse(w, desc)
	case rest == "instances" && r.Method == http.MethodPost:
		s.createInstance(w, r, id)
	default:
		s.jsonError(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) createInstance(w http.ResponseWriter, r *http.Request, workflowID string) {
	var body struct {
		Input map[string]any `json:"input"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	inst, err := s.engine.CreateInstance(workflowID, body.Input)
	if err != nil {
		s.workflowError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(inst)
}

// handleInstanceByID routes /v1/instances/{id} and its actions:
// start, resume, pause, cancel. Start and resume stream engine events
// as SSE until the run parks or finishes.
func (s *Server) handleInstanceByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/instances/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		s.jsonError(w, "instance id required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		inst, err := s.engine.GetInstanceState(id)
		if err != nil {
			s.workflowError(w, err)
			return
		}
		s.jsonResponse(w, inst)
	case action == "start" && r.Method == http.MethodPost:
		events, err := s.engine.Start(r.Context(), id)
		if err != nil {
			s.workflowError(w, err)
			return
		}
		s.streamEngineEvents(w, r, events)
	case action == "resume" && r.Method == http.MethodPost:
		s.resumeInstance(w, r, id)
	case action == "pause" && r.Method == http.MethodPost:
		s.jsonResponse(w, map[string]bool{"requested": s.engine.Pause(id)})
	case action == "cancel" && r.Method == http.MethodPost:
		s.jsonResponse(w, map[string]bool{"requested": s.engine.Cancel(id)})
	default:
		s.jsonError(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) resumeInstance(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Action   workflow.ResumeAction `json:"action"`
		UserData map[string]any        `json:"user_data,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	events, err := s.engine.Resume(r.Context(), id, body.Action, body.UserData)
	if err != nil {
		s.workflowError(w, err)
		return
	}
	s.streamEngineEvents(w, r, events)
}

// streamEngineEvents forwards engine events as SSE until the engine
// closes the channel. The walk itself is not tied to the request
// context; a dropped client only stops observation.
func (s *Server) streamEngineEvents(w http.ResponseWriter, r *http.Request, events <-chan workflow.EngineEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			for range events {
			}
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("event marshal error", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

// workflowError maps engine errors onto HTTP codes: unknown ids are
// 404, status preconditions and graph validation are 409 and 422.
func (s *Server) workflowError(w http.ResponseWriter, err error) {
	var invalidState *workflow.InvalidStateError
	var validation *workflow.ValidationError
	switch {
	case errors.Is(err, workflow.ErrWorkflowNotFound), errors.Is(err, workflow.ErrInstanceNotFound):
		s.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalidState):
		s.jsonError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &validation):
		s.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("workflow request failed", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
