package server

import (
	"net/http"
	"strings"
)

// handleConversations handles GET /v1/conversations.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actorID := r.URL.Query().Get("actor_id")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	list, total, err := s.stores.Conversations.ListConversations(r.Context(), actorID, limit, offset)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	s.jsonResponse(w, map[string]any{
		"conversations": list,
		"total":         total,
	})
}

// handleConversationByID routes /v1/conversations/{id} and
// /v1/conversations/{id}/messages.
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		s.jsonError(w, "conversation id required", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		conv, err := s.stores.Conversations.GetConversation(r.Context(), id)
		if err != nil {
			s.notFoundOr500(w, err)
			return
		}
		s.jsonResponse(w, conv)
	case rest == "" && r.Method == http.MethodDelete:
		if err := s.stores.Conversations.DeleteConversation(r.Context(), id); err != nil {
			s.notFoundOr500(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case rest == "messages" && r.Method == http.MethodGet:
		messages, err := s.stores.Conversations.ListMessages(r.Context(), id, queryInt(r, "limit", 100))
		if err != nil {
			s.notFoundOr500(w, err)
			return
		}
		s.jsonResponse(w, map[string]any{"messages": messages})
	default:
		s.jsonError(w, "not found", http.StatusNotFound)
	}
}
