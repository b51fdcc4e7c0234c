package agent

import (
	"errors"
	"fmt"
)

// Common sentinel errors for agent operations.
var (
	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrToolNotFound indicates a requested tool doesn't exist.
	ErrToolNotFound = errors.New("tool not found")
)

// LoopPhase represents a distinct state of the agentic loop.
type LoopPhase string

const (
	// PhaseRequesting covers sending the message list to the LLM and
	// collecting its streamed response.
	PhaseRequesting LoopPhase = "requesting"

	// PhaseToolExecuting covers running a requested tool through the
	// execution adapter.
	PhaseToolExecuting LoopPhase = "tool_executing"

	// PhaseCompleted is the successful terminal state.
	PhaseCompleted LoopPhase = "completed"

	// PhaseCancelled is the cancellation terminal state.
	PhaseCancelled LoopPhase = "cancelled"

	// PhaseError is the failure terminal state.
	PhaseError LoopPhase = "error"
)

// LoopError is an error from the agentic loop carrying the phase and
// iteration it occurred in. In practice the only unrecovered failures
// are LLM communication errors; tool failures are converted to result
// text before they can reach the loop.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Cause     error
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

// Unwrap returns the underlying error.
func (e *LoopError) Unwrap() error {
	return e.Cause
}
