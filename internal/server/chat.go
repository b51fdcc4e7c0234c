package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/chat"
)

// chatRequest is the wire form of a chat turn.
type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	ActorID        string `json:"actor_id"`
	Text           string `json:"text"`
	System         string `json:"system,omitempty"`
	Model          string `json:"model,omitempty"`
}

// handleChat streams a chat turn as server-sent events. Each event's
// data field is one chat.Chunk; the stream ends after the terminal
// done or error chunk. Closing the connection cancels the turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	cancel := agent.NewCancelToken()
	chunks, err := s.chat.Send(r.Context(), &chat.SendRequest{
		ConversationID: req.ConversationID,
		ActorID:        req.ActorID,
		Text:           req.Text,
		System:         req.System,
		Model:          req.Model,
		Cancel:         cancel,
	})
	if err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			cancel.Cancel()
			// Drain so the turn's goroutine can finish persisting.
			for range chunks {
			}
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			payload, err := json.Marshal(chunk)
			if err != nil {
				s.logger.Error("chunk marshal error", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", chunk.Type, payload)
			flusher.Flush()
		}
	}
}

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// handleChatWS mirrors handleChat over a WebSocket: the client sends
// one chatRequest as a text frame and receives one frame per chunk.
// The connection supports multiple sequential turns.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if !s.runWSTurn(r, conn, &req) {
			return
		}
	}
}

// runWSTurn streams one turn onto conn. Returns false when the
// connection is no longer usable.
func (s *Server) runWSTurn(r *http.Request, conn *websocket.Conn, req *chatRequest) bool {
	cancel := agent.NewCancelToken()
	chunks, err := s.chat.Send(r.Context(), &chat.SendRequest{
		ConversationID: req.ConversationID,
		ActorID:        req.ActorID,
		Text:           req.Text,
		System:         req.System,
		Model:          req.Model,
		Cancel:         cancel,
	})
	if err != nil {
		writeErr := conn.WriteJSON(chat.Chunk{Type: chat.ChunkError, Error: err.Error()})
		return writeErr == nil
	}

	for chunk := range chunks {
		if err := conn.WriteJSON(chunk); err != nil {
			cancel.Cancel()
			for range chunks {
			}
			return false
		}
	}
	return true
}
