package models

import (
	"encoding/json"
	"time"
)

// AgentEventType identifies the kind of agent event.
type AgentEventType string

const (
	// Intermediate events, zero or more per run.
	AgentEventThinking     AgentEventType = "thinking"
	AgentEventMessage      AgentEventType = "message"
	AgentEventToolStart    AgentEventType = "tool.start"
	AgentEventToolProgress AgentEventType = "tool.progress"
	AgentEventToolComplete AgentEventType = "tool.complete"

	// Terminal events. Exactly one of these ends every run.
	AgentEventComplete  AgentEventType = "complete"
	AgentEventCancelled AgentEventType = "cancelled"
	AgentEventError     AgentEventType = "error"
)

// Terminal reports whether the event type ends a run.
func (t AgentEventType) Terminal() bool {
	switch t {
	case AgentEventComplete, AgentEventCancelled, AgentEventError:
		return true
	default:
		return false
	}
}

// AgentEvent is the unified event model emitted by the agentic loop.
// Exactly one payload pointer is non-nil for a given Type. Consumers
// receive events synchronously in emission order; transport adapters
// map them onto their own wire format.
type AgentEvent struct {
	Type AgentEventType `json:"type"`
	Time time.Time      `json:"time"`

	Thinking     *ThinkingPayload     `json:"thinking,omitempty"`
	Message      *MessagePayload      `json:"message,omitempty"`
	ToolStart    *ToolStartPayload    `json:"tool_start,omitempty"`
	ToolProgress *ToolProgressPayload `json:"tool_progress,omitempty"`
	ToolComplete *ToolCompletePayload `json:"tool_complete,omitempty"`
	Complete     *CompletePayload     `json:"complete,omitempty"`
	Cancelled    *CancelledPayload    `json:"cancelled,omitempty"`
	Error        *ErrorPayload        `json:"error,omitempty"`
}

// ThinkingPayload carries streamed reasoning text.
type ThinkingPayload struct {
	Text string `json:"text"`
}

// MessagePayload carries assistant text for an iteration.
type MessagePayload struct {
	Iteration int    `json:"iteration"`
	Text      string `json:"text"`
}

// ToolStartPayload announces a tool invocation.
type ToolStartPayload struct {
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// ToolProgressPayload is an incremental update from a streaming tool.
type ToolProgressPayload struct {
	ToolName string         `json:"tool_name"`
	Stage    string         `json:"stage,omitempty"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	// Progress is a completion fraction in [0, 1]; zero means unknown.
	Progress float64 `json:"progress,omitempty"`
}

// ToolCompletePayload carries a preview of a finished tool call.
type ToolCompletePayload struct {
	ToolName      string `json:"tool_name"`
	ResultPreview string `json:"result_preview"`
	IsError       bool   `json:"is_error,omitempty"`
}

// CompletePayload ends a run that produced a final answer.
type CompletePayload struct {
	FinalText string           `json:"final_text"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// CancelledPayload ends a cancelled run with whatever work finished.
type CancelledPayload struct {
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// ErrorPayload ends a run that failed talking to the LLM.
type ErrorPayload struct {
	Message string `json:"message"`
}
