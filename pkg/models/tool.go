package models

import "encoding/json"

// ToolCall is a tool execution request emitted by the LLM.
type ToolCall struct {
	// ID correlates the call with its eventual result.
	ID string `json:"id"`

	// Name is the registered tool name.
	Name string `json:"name"`

	// Input is the raw JSON arguments for the tool.
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult is the wire form of a completed tool call, fed back to the
// LLM as a tool turn.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolCallRecord is one entry in a run's tool-call log: the tool that
// ran, what it was given, and the text that came back. Records are
// appended in call order and survive cancellation.
type ToolCallRecord struct {
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output"`
}
