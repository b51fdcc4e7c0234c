// Package chat adapts the agentic loop to conversational use. It keeps
// the durable conversation history in a ConversationStore and streams
// agent events back to the caller as UI-ready chunks, so transports
// (SSE, WebSocket) only have to serialize.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/storage"
	"github.com/haasonsaas/conductor/pkg/models"
)

// historyLimit caps how many prior turns are replayed to the LLM.
const historyLimit = 50

// ChunkType identifies the kind of chat chunk.
type ChunkType string

const (
	ChunkThinking     ChunkType = "thinking"
	ChunkText         ChunkType = "text"
	ChunkToolStart    ChunkType = "tool_start"
	ChunkToolProgress ChunkType = "tool_progress"
	ChunkToolResult   ChunkType = "tool_result"
	ChunkDone         ChunkType = "done"
	ChunkError        ChunkType = "error"
)

// Chunk is one streamed element of a chat response. ConversationID is
// set on every chunk so clients that created the conversation
// implicitly learn its id from the first one.
type Chunk struct {
	Type           ChunkType      `json:"type"`
	ConversationID string         `json:"conversation_id"`
	Text           string         `json:"text,omitempty"`
	ToolName       string         `json:"tool_name,omitempty"`
	Stage          string         `json:"stage,omitempty"`
	Progress       float64        `json:"progress,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	IsError        bool           `json:"is_error,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// SendRequest is one user turn.
type SendRequest struct {
	// ConversationID selects an existing conversation. Empty creates a
	// new one owned by ActorID.
	ConversationID string

	ActorID string
	Text    string

	// System overrides the service's system prompt for this turn.
	System string

	// Model overrides the loop's default model.
	Model string

	// Cancel lets the caller abort mid-stream. Optional.
	Cancel *agent.CancelToken
}

// Service drives chat turns through the loop.
type Service struct {
	loop          *agent.Loop
	conversations storage.ConversationStore
	system        string
	logger        *slog.Logger
}

// NewService creates a chat service. system is the default system
// prompt applied when requests do not carry their own.
func NewService(loop *agent.Loop, conversations storage.ConversationStore, system string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loop:          loop,
		conversations: conversations,
		system:        system,
		logger:        logger.With("component", "chat"),
	}
}

// Send records the user turn, runs the loop against the conversation
// history, and returns a channel of chunks. The channel is closed after
// the terminal chunk (done or error). The assistant's reply is
// persisted before the terminal chunk is emitted.
func (s *Service) Send(ctx context.Context, req *SendRequest) (<-chan Chunk, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("chat: message text is required")
	}

	conv, err := s.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	userMsg := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        req.Text,
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("chat: persist user message: %w", err)
	}

	history, err := s.conversations.ListMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("chat: load history: %w", err)
	}

	system := req.System
	if system == "" {
		system = s.system
	}

	out := make(chan Chunk, 64)
	go func() {
		defer close(out)

		sink := func(ev models.AgentEvent) {
			if chunk, ok := chunkFromEvent(conv.ID, ev); ok {
				out <- chunk
			}
		}

		result := s.loop.Run(ctx, &agent.RunRequest{
			System:         system,
			Messages:       toCompletionMessages(history),
			Cancel:         req.Cancel,
			Model:          req.Model,
			ActorID:        req.ActorID,
			ConversationID: conv.ID,
		}, sink)

		s.finish(ctx, conv.ID, result, out)
	}()
	return out, nil
}

func (s *Service) resolveConversation(ctx context.Context, req *SendRequest) (*models.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := s.conversations.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("chat: conversation %s: %w", req.ConversationID, err)
		}
		return conv, nil
	}
	conv := &models.Conversation{
		ActorID: req.ActorID,
		Title:   titleFrom(req.Text),
	}
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("chat: create conversation: %w", err)
	}
	return conv, nil
}

// finish persists the assistant turn and emits the terminal chunk.
// Event streaming already happened through the sink, so failures here
// only affect durability, not what the client saw.
func (s *Service) finish(ctx context.Context, convID string, result *agent.RunResult, out chan<- Chunk) {
	if result.FinalText != "" {
		msg := &models.Message{
			ConversationID: convID,
			Role:           models.RoleAssistant,
			Content:        result.FinalText,
		}
		if err := s.conversations.AppendMessage(ctx, msg); err != nil {
			s.logger.Error("persist assistant message failed",
				"conversation_id", convID, "error", err)
		}
	}

	switch {
	case result.Err != nil:
		out <- Chunk{Type: ChunkError, ConversationID: convID, Error: result.Err.Error()}
	case result.Cancelled:
		out <- Chunk{Type: ChunkDone, ConversationID: convID, Data: map[string]any{"cancelled": true}}
	default:
		out <- Chunk{Type: ChunkDone, ConversationID: convID, Text: result.FinalText}
	}
}

// chunkFromEvent maps loop events onto client chunks. Terminal events
// return false; finish emits those with persistence settled.
func chunkFromEvent(convID string, ev models.AgentEvent) (Chunk, bool) {
	switch ev.Type {
	case models.AgentEventThinking:
		return Chunk{Type: ChunkThinking, ConversationID: convID, Text: ev.Thinking.Text}, true
	case models.AgentEventMessage:
		return Chunk{Type: ChunkText, ConversationID: convID, Text: ev.Message.Text}, true
	case models.AgentEventToolStart:
		return Chunk{Type: ChunkToolStart, ConversationID: convID, ToolName: ev.ToolStart.ToolName}, true
	case models.AgentEventToolProgress:
		return Chunk{
			Type:           ChunkToolProgress,
			ConversationID: convID,
			ToolName:       ev.ToolProgress.ToolName,
			Stage:          ev.ToolProgress.Stage,
			Text:           ev.ToolProgress.Text,
			Progress:       ev.ToolProgress.Progress,
			Data:           ev.ToolProgress.Data,
		}, true
	case models.AgentEventToolComplete:
		return Chunk{
			Type:           ChunkToolResult,
			ConversationID: convID,
			ToolName:       ev.ToolComplete.ToolName,
			Text:           ev.ToolComplete.ResultPreview,
			IsError:        ev.ToolComplete.IsError,
		}, true
	default:
		return Chunk{}, false
	}
}

// toCompletionMessages converts stored turns into provider messages,
// skipping empty non-tool turns.
func toCompletionMessages(msgs []*models.Message) []agent.CompletionMessage {
	out := make([]agent.CompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Content == "" && len(msg.ToolCalls) == 0 && len(msg.ToolResults) == 0 {
			continue
		}
		out = append(out, agent.CompletionMessage{
			Role:        string(msg.Role),
			Content:     msg.Content,
			ToolCalls:   msg.ToolCalls,
			ToolResults: msg.ToolResults,
		})
	}
	return out
}

func titleFrom(text string) string {
	const maxTitle = 60
	text = strings.TrimSpace(text)
	if line, _, found := strings.Cut(text, "\n"); found {
		text = line
	}
	if len(text) > maxTitle {
		text = text[:maxTitle] + "..."
	}
	return text
}
