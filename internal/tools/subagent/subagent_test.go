package subagent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/pkg/models"
)

type scriptedProvider struct {
	responses [][]agent.CompletionChunk
	calls     int
	last      *agent.CompletionRequest
}

func (p *scriptedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.last = req
	idx := p.calls
	p.calls++
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	chunks := p.responses[idx]
	out := make(chan *agent.CompletionChunk, len(chunks))
	for i := range chunks {
		out <- &chunks[i]
	}
	close(out)
	return out, nil
}

func (p *scriptedProvider) Name() string          { return "scripted" }
func (p *scriptedProvider) Models() []agent.Model { return nil }
func (p *scriptedProvider) SupportsTools() bool   { return true }

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input" }
func (echoTool) Category() string    { return "test" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}
func (echoTool) ExecuteText(ctx context.Context, params json.RawMessage, ec *agent.ExecContext) (string, error) {
	return string(params), nil
}

func drain(t *testing.T, items <-chan agent.StreamItem) ([]agent.ProgressEvent, *agent.ToolResult) {
	t.Helper()
	var progress []agent.ProgressEvent
	var result *agent.ToolResult
	for item := range items {
		if item.Progress != nil {
			progress = append(progress, *item.Progress)
		}
		if item.Result != nil {
			result = item.Result
		}
	}
	if result == nil {
		t.Fatal("stream ended without a result")
	}
	return progress, result
}

func TestStreamRunsChildAndForwardsActivity(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{
		{{ToolCall: &models.ToolCall{ID: "tc1", Name: "echo", Input: json.RawMessage(`{"n":1}`)}}, {Done: true}},
		{{Text: "task finished"}, {Done: true}},
	}}
	registry := agent.NewToolRegistry()
	registry.Register(echoTool{})
	tool := New(provider, registry, "")

	progress, result := drain(t, tool.Stream(context.Background(),
		json.RawMessage(`{"task":"count things","tools":["echo"]}`),
		&agent.ExecContext{ActorID: "alice"}))

	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if result.Content != "task finished" {
		t.Fatalf("expected child final text, got %q", result.Content)
	}
	if result.Data["tool_calls"] != 1 {
		t.Fatalf("expected one child tool call, got %+v", result.Data)
	}

	stages := make(map[string]int)
	for _, p := range progress {
		stages[p.Stage]++
	}
	if stages["tool"] < 2 {
		t.Fatalf("expected tool start+finish progress, got %+v", progress)
	}
	if stages["message"] == 0 {
		t.Fatalf("expected child message progress, got %+v", progress)
	}
}

func TestStreamChildSeesOnlyScopedTools(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{
		{{Text: "done"}, {Done: true}},
	}}
	registry := agent.NewToolRegistry()
	registry.Register(echoTool{})
	tool := New(provider, registry, "")

	// No tools requested: the child is offered none.
	drain(t, tool.Stream(context.Background(), json.RawMessage(`{"task":"think"}`), nil))
	if len(provider.last.Tools) != 0 {
		t.Fatalf("expected tool-less child, got %d tools", len(provider.last.Tools))
	}
}

func TestStreamRejectsUnknownTools(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{{{Done: true}}}}
	tool := New(provider, agent.NewToolRegistry(), "")

	_, result := drain(t, tool.Stream(context.Background(),
		json.RawMessage(`{"task":"x","tools":["does_not_exist"]}`), nil))
	if !result.IsError || !strings.Contains(result.Content, "does_not_exist") {
		t.Fatalf("expected unknown-tool error, got %+v", result)
	}
	if provider.calls != 0 {
		t.Fatal("child must not run with unresolved tools")
	}
}

func TestStreamNeverHandsChildTheSpawner(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{
		{{Text: "done"}, {Done: true}},
	}}
	registry := agent.NewToolRegistry()
	registry.Register(echoTool{})
	tool := New(provider, registry, "")
	registry.Register(tool)

	drain(t, tool.Stream(context.Background(),
		json.RawMessage(`{"task":"x","tools":["sub_agent","echo"]}`), nil))

	for _, offered := range provider.last.Tools {
		if offered.Name() == "sub_agent" {
			t.Fatal("child was offered the spawner tool")
		}
	}
	if len(provider.last.Tools) != 1 {
		t.Fatalf("expected only echo offered, got %d", len(provider.last.Tools))
	}
}

func TestStreamRejectsEmptyTask(t *testing.T) {
	tool := New(&scriptedProvider{responses: [][]agent.CompletionChunk{{{Done: true}}}}, agent.NewToolRegistry(), "")
	_, result := drain(t, tool.Stream(context.Background(), json.RawMessage(`{}`), nil))
	if !result.IsError || !strings.Contains(result.Content, "Task parameter is required") {
		t.Fatalf("expected task-required error, got %+v", result)
	}
}

func TestStreamCancelledChild(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{{{Done: true}}}}
	tool := New(provider, agent.NewToolRegistry(), "")

	token := agent.NewCancelToken()
	token.Cancel()
	_, result := drain(t, tool.Stream(context.Background(),
		json.RawMessage(`{"task":"x"}`), &agent.ExecContext{Cancel: token}))
	if !result.IsError || !strings.Contains(result.Content, "cancelled") {
		t.Fatalf("expected cancellation error result, got %+v", result)
	}
}
