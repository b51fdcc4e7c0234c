package agent

import (
	"context"
	"encoding/json"
)

// Tool describes a named capability the LLM can request. Every tool
// implements this descriptor surface plus exactly one of the three
// executor variants below; Invoker.Invoke normalizes all of them into
// a single progress-then-result stream.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	// Must be a valid function name (alphanumeric, underscores).
	Name() string

	// Description returns a natural language description of what the
	// tool does. This is fed verbatim to the LLM.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Category groups related tools for listing and filtering.
	Category() string
}

// TextTool is an executor that returns a plain string.
type TextTool interface {
	Tool
	ExecuteText(ctx context.Context, params json.RawMessage, ec *ExecContext) (string, error)
}

// ResultTool is an executor that returns a structured result.
type ResultTool interface {
	Tool
	Execute(ctx context.Context, params json.RawMessage, ec *ExecContext) (*ToolResult, error)
}

// StreamingTool is an executor that yields zero or more progress
// events before its final result. The returned channel must deliver at
// most one StreamItem carrying a Result, as its last element, and must
// be closed by the producer. Producers should honor ctx cancellation.
type StreamingTool interface {
	Tool
	Stream(ctx context.Context, params json.RawMessage, ec *ExecContext) <-chan StreamItem
}

// ToolResult is the outcome of one tool call. Content is always
// present and is what the LLM sees; Data and Display carry optional
// structured payloads for state and workspace rendering.
type ToolResult struct {
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
	Display map[string]any `json:"display,omitempty"`
	IsError bool           `json:"is_error,omitempty"`
}

// ProgressEvent is an incremental update emitted by a streaming tool,
// strictly before its final result and in emission order.
type ProgressEvent struct {
	Stage   string         `json:"stage,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`

	// Progress is a completion fraction in [0, 1]; zero means unknown.
	Progress float64 `json:"progress,omitempty"`
}

// StreamItem is one element of a normalized tool execution stream:
// either a progress event or the terminal result, never both.
type StreamItem struct {
	Progress *ProgressEvent
	Result   *ToolResult
}

// ExecContext carries per-invocation context into tool executors.
// Cancel is always populated when the invocation originates from a
// cancellable path; Values is caller-controlled scratch space.
type ExecContext struct {
	ActorID        string
	ConversationID string
	Cancel         *CancelToken
	Values         map[string]any
}

// cancelled is a nil-safe read of the cancellation token.
func (ec *ExecContext) cancelled() bool {
	return ec != nil && ec.Cancel.Cancelled()
}

// Descriptor is the serializable view of a registered tool, used when
// presenting the catalogue to external clients.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	Category    string          `json:"category,omitempty"`
	Streaming   bool            `json:"streaming,omitempty"`
}

// IsStreaming reports whether the tool yields progress events.
func IsStreaming(t Tool) bool {
	_, ok := t.(StreamingTool)
	return ok
}
