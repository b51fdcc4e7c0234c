package runs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/storage"
	"github.com/haasonsaas/conductor/pkg/models"
)

// scriptedProvider replays canned responses. onCall, when set, runs at
// the start of each Complete with the 1-based call number.
type scriptedProvider struct {
	responses [][]agent.CompletionChunk
	onCall    func(call int)
	calls     int
	err       error
}

func (p *scriptedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if p.err != nil {
		return nil, p.err
	}
	idx := p.calls - 1
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

func newRecorder(provider agent.LLMProvider) (*Recorder, storage.RunStore) {
	registry := agent.NewToolRegistry()
	registry.Register(echoTool{})
	store := storage.NewMemoryRunStore()
	loop := agent.NewLoop(provider, registry, nil)
	return NewRecorder(loop, store, "you act autonomously", nil), store
}

func TestRunPersistsTrailAndOutcome(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{
		{{ToolCall: &models.ToolCall{ID: "tc1", Name: "echo", Input: json.RawMessage(`{"q":1}`)}}, {Done: true}},
		{{Text: "all done"}, {Done: true}},
	}}
	rec, _ := newRecorder(provider)

	run, err := rec.Run(context.Background(), &StartRequest{ActorID: "alice", Prompt: "tidy up"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != models.RunStatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", run.Status, run.Error)
	}
	if run.FinalText != "all done" {
		t.Fatalf("unexpected final text %q", run.FinalText)
	}
	if len(run.ToolCalls) != 1 || run.ToolCalls[0].Name != "echo" {
		t.Fatalf("expected one echo tool call logged, got %+v", run.ToolCalls)
	}
	if run.StartedAt.IsZero() || run.FinishedAt.Before(run.StartedAt) {
		t.Fatalf("expected sane timing, got started=%v finished=%v", run.StartedAt, run.FinishedAt)
	}

	events, err := rec.Events(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected a persisted event trail")
	}
	for i, ev := range events {
		if ev.Seq != i+1 {
			t.Fatalf("expected contiguous seq at %d, got %d", i, ev.Seq)
		}
	}
	last := events[len(events)-1]
	if last.Event.Type != models.AgentEventComplete {
		t.Fatalf("expected complete as final event, got %s", last.Event.Type)
	}
	sawToolStart := false
	for _, ev := range events {
		if ev.Event.Type == models.AgentEventToolStart {
			sawToolStart = true
		}
	}
	if !sawToolStart {
		t.Fatal("expected tool.start in the trail")
	}
}

func TestRunProviderFailureMarksFailed(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}
	rec, _ := newRecorder(provider)

	run, err := rec.Run(context.Background(), &StartRequest{ActorID: "alice", Prompt: "go"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if run.Error == "" {
		t.Fatal("expected error recorded on the run")
	}

	events, err := rec.Events(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if events[len(events)-1].Event.Type != models.AgentEventError {
		t.Fatalf("expected error as final event, got %s", events[len(events)-1].Event.Type)
	}
}

func TestRunCancelMarksCancelled(t *testing.T) {
	toolCall := agent.CompletionChunk{
		ToolCall: &models.ToolCall{ID: "tc1", Name: "echo", Input: json.RawMessage(`{}`)},
	}
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{
		{toolCall}, {toolCall},
	}}
	rec, _ := newRecorder(provider)

	var runID string
	provider.onCall = func(call int) {
		if call == 2 {
			if !rec.Cancel(runID) {
				panic("run not active at cancel time")
			}
		}
	}

	run, token, err := rec.prepare(context.Background(), &StartRequest{ActorID: "alice", Prompt: "loop forever"})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	runID = run.ID
	rec.execute(context.Background(), run, &StartRequest{ActorID: "alice", Prompt: "loop forever"}, token)

	got, err := rec.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s (%s)", got.Status, got.Error)
	}

	events, err := rec.Events(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if events[len(events)-1].Event.Type != models.AgentEventCancelled {
		t.Fatalf("expected cancelled as final event, got %s", events[len(events)-1].Event.Type)
	}
}

func TestStartRunsAsynchronously(t *testing.T) {
	provider := &scriptedProvider{responses: [][]agent.CompletionChunk{
		{{Text: "ok"}, {Done: true}},
	}}
	rec, _ := newRecorder(provider)

	run, err := rec.Start(context.Background(), &StartRequest{ActorID: "alice", Prompt: "go"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.Status != models.RunStatusPending {
		t.Fatalf("expected pending snapshot, got %s", run.Status)
	}

	select {
	case <-rec.Done(run.ID):
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	got, err := rec.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.RunStatusSucceeded || got.FinalText != "ok" {
		t.Fatalf("unexpected finished run %+v", got)
	}
}

func TestStartEmptyPromptRejected(t *testing.T) {
	rec, _ := newRecorder(&scriptedProvider{responses: [][]agent.CompletionChunk{{{Done: true}}}})
	if _, err := rec.Start(context.Background(), &StartRequest{Prompt: " "}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
