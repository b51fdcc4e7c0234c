package agent

import (
	"context"

	"github.com/haasonsaas/conductor/pkg/models"
)

// LLMProvider is the interface for LLM backends. Implementations
// handle the specifics of communicating with a given API while
// presenting a unified streaming interface to the loop.
//
// Implementations must be safe for concurrent use; each Complete call
// creates an independent stream.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []Model

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for one LLM request.
type CompletionRequest struct {
	// Model specifies which model to use. Empty means the provider
	// default.
	Model string `json:"model"`

	// System is the system prompt, handled separately from messages in
	// most LLM APIs.
	System string `json:"system,omitempty"`

	// Messages is the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools the LLM may request to execute. Empty disables tool use.
	Tools []Tool `json:"-"`

	// MaxTokens limits the response length; 0 uses the provider
	// default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionMessage is a single conversation turn sent to a provider.
// Role values: "user", "assistant", "tool".
type CompletionMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// CompletionChunk is one element of a streaming LLM response. Text,
// Thinking, ToolCall, Done, and Error are mutually exclusive in
// practice; consumers check each field.
type CompletionChunk struct {
	Text     string           `json:"text,omitempty"`
	Thinking string           `json:"thinking,omitempty"`
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`
	Done     bool             `json:"done,omitempty"`
	Error    error            `json:"-"`

	// Token counts, populated on the final chunk when available.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Model describes an available LLM model.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"context_size"`
}
