package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/haasonsaas/conductor/internal/observability"
	"github.com/haasonsaas/conductor/pkg/models"
)

// EventSink receives agent events synchronously in emission order.
// Sinks must not block indefinitely; a nil sink drops events.
type EventSink func(models.AgentEvent)

// resultPreviewLimit caps the tool output excerpt carried on
// tool.complete events.
const resultPreviewLimit = 200

// synthesisPrompt is appended when the iteration cap is reached with
// tool work still pending, so the final request produces an answer
// instead of another tool call.
const synthesisPrompt = "You have reached the limit of tool use for this task. " +
	"Provide your best final answer based on the information gathered so far."

// LoopConfig configures loop behavior.
type LoopConfig struct {
	// MaxIterations bounds LLM requests per run when the caller does
	// not specify a cap. Default: 10.
	MaxIterations int

	// MaxTokens is the per-response token limit. Default: 4096.
	MaxTokens int
}

// DefaultLoopConfig returns the default loop configuration.
func DefaultLoopConfig() *LoopConfig {
	return &LoopConfig{
		MaxIterations: 10,
		MaxTokens:     4096,
	}
}

func sanitizeLoopConfig(config *LoopConfig) *LoopConfig {
	if config == nil {
		return DefaultLoopConfig()
	}
	cfg := *config
	defaults := DefaultLoopConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	return &cfg
}

// Loop drives the agentic conversation: it alternates LLM requests
// and tool executions until the model produces a plain-text answer,
// the iteration cap forces a synthesis, the token is cancelled, or the
// provider fails.
//
// The loop owns no state between runs; each Run is self-contained
// given its request. State machine:
//
//	Requesting ──tool call──▶ ToolExecuting ──▶ Requesting
//	Requesting ──text only──▶ Completed
//	Requesting ──cap hit────▶ Completed (forced synthesis)
//	any ────────cancel──────▶ Cancelled
//	Requesting ──LLM error──▶ Error
type Loop struct {
	provider LLMProvider
	registry *ToolRegistry
	invoker  *Invoker
	config   *LoopConfig
	observer Observer

	defaultModel string
}

// Observer receives timing signals from the loop. Implementations must
// be safe for concurrent use across runs.
type Observer interface {
	RecordLLMRequest(provider, model, status string, seconds float64, inputTokens, outputTokens int)
	RecordToolExecution(tool, status string, seconds float64)
}

// NewLoop creates a loop with the given provider and tool registry.
// If config is nil, DefaultLoopConfig is used.
func NewLoop(provider LLMProvider, registry *ToolRegistry, config *LoopConfig) *Loop {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return &Loop{
		provider: provider,
		registry: registry,
		invoker:  NewInvoker(registry),
		config:   sanitizeLoopConfig(config),
	}
}

// SetDefaultModel sets the model used when requests do not specify one.
func (l *Loop) SetDefaultModel(model string) {
	l.defaultModel = model
}

// SetObserver installs a timing observer. Set before the first Run.
func (l *Loop) SetObserver(o Observer) {
	l.observer = o
}

// Registry returns the loop's tool registry.
func (l *Loop) Registry() *ToolRegistry {
	return l.registry
}

// RunRequest is the input to one loop execution.
type RunRequest struct {
	// System is the system prompt for the run.
	System string

	// Messages is the ordered role/content history ending with the
	// user's latest message.
	Messages []CompletionMessage

	// Tools offered to the LLM for this run. Nil offers the full
	// registry; an empty non-nil slice offers none.
	Tools []Tool

	// MaxIterations caps LLM requests for this run; 0 uses the loop
	// default. Always at least 1.
	MaxIterations int

	// Cancel is the shared cancellation token. Nil runs are not
	// cancellable.
	Cancel *CancelToken

	// Model overrides the default model.
	Model string

	// ActorID and ConversationID flow into tool execution contexts.
	ActorID        string
	ConversationID string
}

// RunResult is the outcome of one loop execution.
type RunResult struct {
	// FinalText is the answer text; on error it holds whatever partial
	// text accumulated before the failure.
	FinalText string

	// ToolCalls logs every invoked tool in call order.
	ToolCalls []models.ToolCallRecord

	// Cancelled is true when the run ended via the token.
	Cancelled bool

	// Err is the fatal error for runs that ended in the Error state.
	Err error
}

// Run executes the loop. It always emits exactly one terminal event
// (complete, cancelled, or error) to the sink before returning, and
// performs at most req.MaxIterations LLM requests.
func (l *Loop) Run(ctx context.Context, req *RunRequest, sink EventSink) *RunResult {
	res := &RunResult{}
	emit := func(ev models.AgentEvent) {
		if sink != nil {
			ev.Time = time.Now()
			sink(ev)
		}
	}

	if l.provider == nil {
		res.Err = ErrNoProvider
		emit(errorEvent(ErrNoProvider.Error()))
		return res
	}

	cancel := req.Cancel
	if cancel == nil {
		cancel = NewCancelToken()
	}
	ec := &ExecContext{
		ActorID:        req.ActorID,
		ConversationID: req.ConversationID,
		Cancel:         cancel,
	}

	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = l.config.MaxIterations
	}

	tools := req.Tools
	if tools == nil {
		tools = l.registry.List()
	}

	messages := make([]CompletionMessage, len(req.Messages))
	copy(messages, req.Messages)

	model := req.Model
	if model == "" {
		model = l.defaultModel
	}

	for iter := 1; iter <= maxIter; iter++ {
		if cancel.Cancelled() || ctx.Err() != nil {
			res.Cancelled = true
			emit(cancelledEvent(res.ToolCalls))
			return res
		}

		forced := iter == maxIter && len(res.ToolCalls) > 0
		creq := &CompletionRequest{
			Model:     model,
			System:    req.System,
			Messages:  messages,
			Tools:     tools,
			MaxTokens: l.config.MaxTokens,
		}
		if iter == maxIter {
			// Final request: no tools, so the run must terminate with
			// whatever text comes back. With MaxIterations of 1 this
			// is also the first request, and the run offers no tools
			// at all.
			creq.Tools = nil
		}
		if forced {
			creq.Messages = append(creq.Messages, CompletionMessage{
				Role:    string(models.RoleUser),
				Content: synthesisPrompt,
			})
		}

		text, toolCalls, err := l.requestPhase(ctx, creq, emit)
		if err != nil {
			res.FinalText = text
			res.Err = &LoopError{Phase: PhaseRequesting, Iteration: iter, Cause: err}
			emit(errorEvent(err.Error()))
			return res
		}

		if text != "" {
			emit(models.AgentEvent{
				Type:    models.AgentEventMessage,
				Message: &models.MessagePayload{Iteration: iter, Text: text},
			})
		}

		if len(toolCalls) == 0 || iter == maxIter {
			res.FinalText = text
			emit(models.AgentEvent{
				Type:     models.AgentEventComplete,
				Complete: &models.CompletePayload{FinalText: text, ToolCalls: res.ToolCalls},
			})
			return res
		}

		// Only the first requested tool runs this iteration; any
		// additional calls in the same response are dropped. This is
		// the documented contract, not an oversight to fix here.
		tc := toolCalls[0]
		result := l.toolPhase(ctx, tc, tools, ec, emit)
		res.ToolCalls = append(res.ToolCalls, models.ToolCallRecord{
			Name:   tc.Name,
			Input:  tc.Input,
			Output: result.Content,
		})

		messages = append(messages,
			CompletionMessage{
				Role:      string(models.RoleAssistant),
				Content:   text,
				ToolCalls: []models.ToolCall{tc},
			},
			CompletionMessage{
				Role: string(models.RoleTool),
				ToolResults: []models.ToolResult{{
					ToolCallID: tc.ID,
					Content:    result.Content,
					IsError:    result.IsError,
				}},
			},
		)
	}

	// Unreachable: the final iteration always returns above.
	emit(models.AgentEvent{
		Type:     models.AgentEventComplete,
		Complete: &models.CompletePayload{ToolCalls: res.ToolCalls},
	})
	return res
}

// requestPhase sends one completion request and collects the streamed
// response into text and tool calls, forwarding thinking deltas.
func (l *Loop) requestPhase(ctx context.Context, creq *CompletionRequest, emit func(models.AgentEvent)) (string, []models.ToolCall, error) {
	ctx, span := observability.StartLLMSpan(ctx, l.provider.Name(), creq.Model)
	defer span.End()

	start := time.Now()
	stream, err := l.provider.Complete(ctx, creq)
	if err != nil {
		observability.RecordError(span, err)
		l.observeLLM(creq.Model, "error", start, 0, 0)
		return "", nil, err
	}

	var textBuilder strings.Builder
	var toolCalls []models.ToolCall
	var inputTokens, outputTokens int

	for chunk := range stream {
		inputTokens += chunk.InputTokens
		outputTokens += chunk.OutputTokens
		if chunk.Error != nil {
			observability.RecordError(span, chunk.Error)
			l.observeLLM(creq.Model, "error", start, inputTokens, outputTokens)
			return textBuilder.String(), nil, chunk.Error
		}
		if chunk.Thinking != "" {
			emit(models.AgentEvent{
				Type:     models.AgentEventThinking,
				Thinking: &models.ThinkingPayload{Text: chunk.Thinking},
			})
		}
		if chunk.Text != "" {
			textBuilder.WriteString(chunk.Text)
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
	}

	l.observeLLM(creq.Model, "success", start, inputTokens, outputTokens)
	return textBuilder.String(), toolCalls, nil
}

func (l *Loop) observeLLM(model, status string, start time.Time, inputTokens, outputTokens int) {
	if l.observer == nil {
		return
	}
	l.observer.RecordLLMRequest(l.provider.Name(), model, status, time.Since(start).Seconds(), inputTokens, outputTokens)
}

// toolPhase runs one tool call through the execution adapter, emitting
// start, progress, and complete events. It always returns a
// well-formed result.
func (l *Loop) toolPhase(ctx context.Context, tc models.ToolCall, offered []Tool, ec *ExecContext, emit func(models.AgentEvent)) *ToolResult {
	ctx, span := observability.StartToolSpan(ctx, tc.Name)
	defer span.End()

	start := time.Now()
	emit(models.AgentEvent{
		Type:      models.AgentEventToolStart,
		ToolStart: &models.ToolStartPayload{ToolName: tc.Name, Input: tc.Input},
	})

	// Per-run tools that were offered to the LLM but are not in the
	// registry execute directly, without schema validation.
	var items <-chan StreamItem
	if _, registered := l.registry.Get(tc.Name); registered {
		items = l.invoker.Invoke(ctx, tc.Name, tc.Input, ec)
	} else if t := findTool(offered, tc.Name); t != nil {
		items = l.invoker.InvokeTool(ctx, t, tc.Input, ec)
	} else {
		items = l.invoker.Invoke(ctx, tc.Name, tc.Input, ec)
	}

	var final *ToolResult
	for item := range items {
		if item.Progress != nil {
			emit(models.AgentEvent{
				Type: models.AgentEventToolProgress,
				ToolProgress: &models.ToolProgressPayload{
					ToolName: tc.Name,
					Stage:    item.Progress.Stage,
					Text:     item.Progress.Message,
					Data:     item.Progress.Data,
					Progress: item.Progress.Progress,
				},
			})
		}
		if item.Result != nil {
			final = item.Result
		}
	}
	if final == nil {
		final = errorResult(tc.Name, ErrToolNotFound)
	}

	if final.IsError {
		observability.RecordError(span, errors.New(preview(final.Content)))
	}
	if l.observer != nil {
		status := "success"
		if final.IsError {
			status = "error"
		}
		l.observer.RecordToolExecution(tc.Name, status, time.Since(start).Seconds())
	}

	emit(models.AgentEvent{
		Type: models.AgentEventToolComplete,
		ToolComplete: &models.ToolCompletePayload{
			ToolName:      tc.Name,
			ResultPreview: preview(final.Content),
			IsError:       final.IsError,
		},
	})
	return final
}

func findTool(tools []Tool, name string) Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func preview(s string) string {
	if len(s) <= resultPreviewLimit {
		return s
	}
	return s[:resultPreviewLimit] + "..."
}

func errorEvent(msg string) models.AgentEvent {
	return models.AgentEvent{
		Type:  models.AgentEventError,
		Error: &models.ErrorPayload{Message: msg},
	}
}

func cancelledEvent(calls []models.ToolCallRecord) models.AgentEvent {
	return models.AgentEvent{
		Type:      models.AgentEventCancelled,
		Cancelled: &models.CancelledPayload{ToolCalls: calls},
	}
}
