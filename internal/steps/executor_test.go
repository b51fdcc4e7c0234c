package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/workflow"
)

// capturingProvider records the last request and replies with fixed
// text.
type capturingProvider struct {
	reply string
	last  *agent.CompletionRequest
	err   error
}

func (p *capturingProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	out := make(chan *agent.CompletionChunk, 2)
	out <- &agent.CompletionChunk{Text: p.reply}
	out <- &agent.CompletionChunk{Done: true}
	close(out)
	return out, nil
}

func (p *capturingProvider) Name() string          { return "capturing" }
func (p *capturingProvider) Models() []agent.Model { return nil }
func (p *capturingProvider) SupportsTools() bool   { return true }

func newExecutor(provider agent.LLMProvider) *Executor {
	return NewExecutor(agent.NewLoop(provider, agent.NewToolRegistry(), nil), nil)
}

func TestExecuteUsesFreshContext(t *testing.T) {
	provider := &capturingProvider{reply: "draft text"}
	exec := newExecutor(provider)

	res, err := exec.Execute(context.Background(), &Request{
		System: "you write drafts",
		Prompt: "write a draft about birds",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Text != "draft text" {
		t.Fatalf("unexpected text %q", res.Text)
	}

	if provider.last.System != "you write drafts" {
		t.Fatalf("expected step system prompt, got %q", provider.last.System)
	}
	if len(provider.last.Messages) != 1 {
		t.Fatalf("expected a single fresh message, got %d", len(provider.last.Messages))
	}
	if provider.last.Messages[0].Content != "write a draft about birds" {
		t.Fatalf("unexpected prompt %q", provider.last.Messages[0].Content)
	}
}

func TestExecuteEmptyPromptRejected(t *testing.T) {
	exec := newExecutor(&capturingProvider{reply: "x"})
	if _, err := exec.Execute(context.Background(), &Request{Prompt: "  "}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestExecutePropagatesLoopError(t *testing.T) {
	provider := &capturingProvider{err: errors.New("model overloaded")}
	exec := newExecutor(provider)

	_, err := exec.Execute(context.Background(), &Request{Prompt: "go"})
	if err == nil {
		t.Fatal("expected loop error to propagate")
	}
	var loopErr *agent.LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("expected LoopError in chain, got %v", err)
	}
}

func TestExecuteCancelled(t *testing.T) {
	exec := newExecutor(&capturingProvider{reply: "x"})
	token := agent.NewCancelToken()
	token.Cancel()

	_, err := exec.Execute(context.Background(), &Request{Prompt: "go", Cancel: token})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStepFuncStoresTextOutput(t *testing.T) {
	provider := &capturingProvider{reply: "node output"}
	exec := newExecutor(provider)

	step := exec.StepFunc(func(wc *workflow.Context) *Request {
		topic, _ := wc.Input["topic"].(string)
		return &Request{Prompt: "write about " + topic}
	})

	wc := workflow.NewContext(map[string]any{"topic": "tides"}, "draft")
	out, err := step(context.Background(), wc)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out["text"] != "node output" {
		t.Fatalf("unexpected step output %+v", out)
	}
	if provider.last.Messages[0].Content != "write about tides" {
		t.Fatalf("expected context-built prompt, got %q", provider.last.Messages[0].Content)
	}
}
