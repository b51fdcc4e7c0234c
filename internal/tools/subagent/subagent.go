// Package subagent provides the sub_agent tool: it runs a nested
// agentic loop over a scoped tool set and streams the child's activity
// back as progress events. The child runs inside the tool call, so the
// parent's cancellation and iteration budget contain it.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/tools"
	"github.com/haasonsaas/conductor/pkg/models"
)

// childIterations caps the child loop's LLM requests.
const childIterations = 5

// Params are the sub_agent tool's input parameters.
type Params struct {
	// Task is the instruction handed to the child agent.
	Task string `json:"task" jsonschema:"description=The task for the sub-agent to carry out"`

	// Tools names the registry tools the child may use. Empty allows
	// none, keeping the child a pure reasoner.
	Tools []string `json:"tools,omitempty" jsonschema:"description=Registry tool names the sub-agent may use"`

	// System overrides the child's system prompt.
	System string `json:"system,omitempty" jsonschema:"description=Optional system prompt for the sub-agent"`
}

// Tool implements agent.StreamingTool by running a nested loop.
type Tool struct {
	provider agent.LLMProvider
	registry *agent.ToolRegistry
	system   string
}

// New creates the sub-agent tool. registry is the parent's catalogue;
// children see only the subset each call names.
func New(provider agent.LLMProvider, registry *agent.ToolRegistry, system string) *Tool {
	if system == "" {
		system = "You are a focused sub-agent. Complete the given task and report the outcome concisely."
	}
	return &Tool{provider: provider, registry: registry, system: system}
}

func (t *Tool) Name() string     { return "sub_agent" }
func (t *Tool) Category() string { return "agents" }

func (t *Tool) Description() string {
	return "Delegate a self-contained task to a sub-agent with a restricted tool set. Returns the sub-agent's final answer."
}

func (t *Tool) Schema() json.RawMessage {
	return tools.MustSchema(&Params{})
}

// Stream runs the child loop, mapping its events onto progress and its
// outcome onto the final result.
func (t *Tool) Stream(ctx context.Context, params json.RawMessage, ec *agent.ExecContext) <-chan agent.StreamItem {
	out := make(chan agent.StreamItem, 16)
	go func() {
		defer close(out)

		var p Params
		if err := json.Unmarshal(params, &p); err != nil {
			out <- errorItem(fmt.Sprintf("Invalid parameters: %v", err))
			return
		}
		if p.Task == "" {
			out <- errorItem("Task parameter is required")
			return
		}

		scoped, missing := t.scopedTools(p.Tools)
		if len(missing) > 0 {
			out <- errorItem(fmt.Sprintf("Unknown tools requested: %v", missing))
			return
		}

		system := p.System
		if system == "" {
			system = t.system
		}

		loop := agent.NewLoop(t.provider, t.registry, nil)
		req := &agent.RunRequest{
			System:        system,
			Messages:      []agent.CompletionMessage{{Role: string(models.RoleUser), Content: p.Task}},
			Tools:         scoped,
			MaxIterations: childIterations,
		}
		if ec != nil {
			req.Cancel = ec.Cancel
			req.ActorID = ec.ActorID
			req.ConversationID = ec.ConversationID
		}

		sink := func(ev models.AgentEvent) {
			if progress := progressFrom(ev); progress != nil {
				out <- agent.StreamItem{Progress: progress}
			}
		}
		result := loop.Run(ctx, req, sink)

		switch {
		case result.Err != nil:
			out <- errorItem(fmt.Sprintf("Sub-agent failed: %v", result.Err))
		case result.Cancelled:
			out <- errorItem("Sub-agent was cancelled")
		default:
			out <- agent.StreamItem{Result: &agent.ToolResult{
				Content: result.FinalText,
				Data:    map[string]any{"tool_calls": len(result.ToolCalls)},
			}}
		}
	}()
	return out
}

// scopedTools resolves requested names against the registry. nil names
// yields an empty (tool-less) child.
func (t *Tool) scopedTools(names []string) ([]agent.Tool, []string) {
	scoped := make([]agent.Tool, 0, len(names))
	var missing []string
	for _, name := range names {
		if name == t.Name() {
			// A child never gets the spawner itself, so nesting cannot
			// recurse.
			continue
		}
		tool, ok := t.registry.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		scoped = append(scoped, tool)
	}
	return scoped, missing
}

func progressFrom(ev models.AgentEvent) *agent.ProgressEvent {
	switch ev.Type {
	case models.AgentEventMessage:
		return &agent.ProgressEvent{Stage: "message", Message: ev.Message.Text}
	case models.AgentEventToolStart:
		return &agent.ProgressEvent{Stage: "tool", Message: fmt.Sprintf("running %s", ev.ToolStart.ToolName)}
	case models.AgentEventToolComplete:
		return &agent.ProgressEvent{
			Stage:   "tool",
			Message: fmt.Sprintf("%s finished", ev.ToolComplete.ToolName),
			Data:    map[string]any{"is_error": ev.ToolComplete.IsError},
		}
	default:
		return nil
	}
}

func errorItem(msg string) agent.StreamItem {
	return agent.StreamItem{Result: &agent.ToolResult{Content: msg, IsError: true}}
}
