package models

import "time"

// RunStatus is the lifecycle state of an autonomous agent run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// AgentRun records one autonomous execution of the agentic loop:
// the prompt it was given, its outcome, and timing. The event trail
// is persisted separately as RunEvent rows for later inspection.
type AgentRun struct {
	ID         string           `json:"id"`
	ActorID    string           `json:"actor_id"`
	Prompt     string           `json:"prompt"`
	Status     RunStatus        `json:"status"`
	FinalText  string           `json:"final_text,omitempty"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
}

// RunEvent is one persisted agent event within a run, ordered by Seq.
type RunEvent struct {
	ID    string     `json:"id"`
	RunID string     `json:"run_id"`
	Seq   int        `json:"seq"`
	Event AgentEvent `json:"event"`
}
