// Package steps runs single LLM-backed steps, each with a fresh
// message context. Workflow execute nodes use this instead of the chat
// path so a step's prompt is not polluted by conversation history.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/workflow"
	"github.com/haasonsaas/conductor/pkg/models"
)

// Request describes one step execution.
type Request struct {
	// System is the step's system prompt.
	System string

	// Prompt is the single user message the step starts from.
	Prompt string

	// Tools offered for this step. Nil offers the loop registry's full
	// set; an empty non-nil slice offers none.
	Tools []agent.Tool

	// MaxIterations caps LLM requests for the step; 0 uses the loop
	// default.
	MaxIterations int

	// Model overrides the loop's default model.
	Model string

	ActorID string
	Cancel  *agent.CancelToken
}

// Result is the outcome of one step.
type Result struct {
	Text      string
	ToolCalls []models.ToolCallRecord
}

// Executor runs steps through an agentic loop.
type Executor struct {
	loop   *agent.Loop
	logger *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(loop *agent.Loop, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		loop:   loop,
		logger: logger.With("component", "steps"),
	}
}

// Execute runs one step to completion. Events are not surfaced; steps
// are judged by their final text. Cancellation and loop errors are
// returned as errors.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("steps: prompt is required")
	}

	result := e.loop.Run(ctx, &agent.RunRequest{
		System:        req.System,
		Messages:      []agent.CompletionMessage{{Role: string(models.RoleUser), Content: req.Prompt}},
		Tools:         req.Tools,
		MaxIterations: req.MaxIterations,
		Cancel:        req.Cancel,
		Model:         req.Model,
		ActorID:       req.ActorID,
	}, nil)

	if result.Err != nil {
		return nil, fmt.Errorf("steps: %w", result.Err)
	}
	if result.Cancelled {
		return nil, context.Canceled
	}

	e.logger.Debug("step completed",
		"tool_calls", len(result.ToolCalls), "text_len", len(result.FinalText))
	return &Result{Text: result.FinalText, ToolCalls: result.ToolCalls}, nil
}

// StepFunc adapts the executor into a workflow step function. build
// produces the step request from the run's workflow context; the
// step's text lands in step data under "text" and its tool call count
// under "tool_calls".
func (e *Executor) StepFunc(build func(wc *workflow.Context) *Request) workflow.StepFunc {
	return func(ctx context.Context, wc *workflow.Context) (map[string]any, error) {
		res, err := e.Execute(ctx, build(wc))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"text":       res.Text,
			"tool_calls": len(res.ToolCalls),
		}, nil
	}
}
