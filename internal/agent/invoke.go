package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
)

// errorPrefix starts the content of every tool result synthesized from
// an executor failure. The LLM reacts to this text; raw errors never
// propagate past the adapter.
const errorPrefix = "Error executing tool"

// Invoker is the tool execution adapter. It presents every executor
// variant - plain string, structured result, or streaming producer -
// as one uniform stream of progress events followed by exactly one
// final result. Executors run on their own goroutine so synchronous,
// blocking tool code never stalls the loop driving the run.
type Invoker struct {
	registry *ToolRegistry
}

// NewInvoker creates an invoker backed by the given registry.
func NewInvoker(registry *ToolRegistry) *Invoker {
	return &Invoker{registry: registry}
}

// Invoke looks up and executes a tool, returning its normalized
// stream. The returned channel always delivers exactly one final
// Result item (possibly preceded by progress items) and is then
// closed: unknown tools, invalid input, executor errors, and panics
// all surface as an error-text result, never as a raw failure.
//
// The cancellation token in ec is checked before each stream pull;
// once tripped, pulling stops and a synthetic cancellation result is
// yielded. In-flight blocking executors are not interrupted.
func (inv *Invoker) Invoke(ctx context.Context, name string, params json.RawMessage, ec *ExecContext) <-chan StreamItem {
	out := make(chan StreamItem)

	go func() {
		defer close(out)

		tool, ok := inv.registry.Get(name)
		if !ok {
			out <- resultItem(errorResult(name, fmt.Errorf("unknown tool")))
			return
		}
		if err := inv.registry.ValidateInput(name, params); err != nil {
			out <- resultItem(errorResult(name, fmt.Errorf("invalid input: %w", err)))
			return
		}
		if ec.cancelled() {
			out <- resultItem(cancelResult(name))
			return
		}

		switch t := tool.(type) {
		case StreamingTool:
			inv.pullStream(ctx, t, params, ec, out)
		case ResultTool:
			out <- resultItem(inv.runResult(ctx, t, params, ec))
		case TextTool:
			out <- resultItem(inv.runText(ctx, t, params, ec))
		default:
			out <- resultItem(errorResult(name, fmt.Errorf("tool has no executor")))
		}
	}()

	return out
}

// InvokeTool executes a tool instance directly, bypassing registry
// lookup and validation. Used for per-run tool sets that are not
// globally registered.
func (inv *Invoker) InvokeTool(ctx context.Context, tool Tool, params json.RawMessage, ec *ExecContext) <-chan StreamItem {
	out := make(chan StreamItem)

	go func() {
		defer close(out)
		if ec.cancelled() {
			out <- resultItem(cancelResult(tool.Name()))
			return
		}
		switch t := tool.(type) {
		case StreamingTool:
			inv.pullStream(ctx, t, params, ec, out)
		case ResultTool:
			out <- resultItem(inv.runResult(ctx, t, params, ec))
		case TextTool:
			out <- resultItem(inv.runText(ctx, t, params, ec))
		default:
			out <- resultItem(errorResult(tool.Name(), fmt.Errorf("tool has no executor")))
		}
	}()

	return out
}

// pullStream drains a streaming executor one item at a time,
// forwarding progress and capturing the terminal result. The token is
// checked before every pull; on cancellation the producer's context is
// cancelled and a synthetic result is emitted without waiting for the
// producer to finish.
func (inv *Invoker) pullStream(ctx context.Context, t StreamingTool, params json.RawMessage, ec *ExecContext, out chan<- StreamItem) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	items, err := safeStream(streamCtx, t, params, ec)
	if err != nil {
		out <- resultItem(errorResult(t.Name(), err))
		return
	}

	for {
		if ec.cancelled() {
			cancel()
			out <- resultItem(cancelResult(t.Name()))
			return
		}
		item, open := <-items
		if !open {
			// Producer finished without a terminal result.
			out <- resultItem(errorResult(t.Name(), fmt.Errorf("stream ended without a result")))
			return
		}
		if item.Result != nil {
			out <- resultItem(item.Result)
			return
		}
		if item.Progress != nil {
			out <- StreamItem{Progress: item.Progress}
		}
	}
}

// safeStream starts a streaming executor, converting a panic during
// startup into an error.
func safeStream(ctx context.Context, t StreamingTool, params json.RawMessage, ec *ExecContext) (items <-chan StreamItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	items = t.Stream(ctx, params, ec)
	if items == nil {
		return nil, fmt.Errorf("stream executor returned no channel")
	}
	return items, nil
}

func (inv *Invoker) runResult(ctx context.Context, t ResultTool, params json.RawMessage, ec *ExecContext) (out *ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			out = errorResult(t.Name(), fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	res, err := t.Execute(ctx, params, ec)
	if err != nil {
		return errorResult(t.Name(), err)
	}
	if res == nil {
		return errorResult(t.Name(), fmt.Errorf("executor returned no result"))
	}
	return res
}

func (inv *Invoker) runText(ctx context.Context, t TextTool, params json.RawMessage, ec *ExecContext) (out *ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			out = errorResult(t.Name(), fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	text, err := t.ExecuteText(ctx, params, ec)
	if err != nil {
		return errorResult(t.Name(), err)
	}
	return &ToolResult{Content: text}
}

func errorResult(name string, err error) *ToolResult {
	return &ToolResult{
		Content: fmt.Sprintf("%s: %s: %v", errorPrefix, name, err),
		IsError: true,
	}
}

func cancelResult(name string) *ToolResult {
	return &ToolResult{
		Content: fmt.Sprintf("Tool %s cancelled before completion", name),
		IsError: true,
	}
}

func resultItem(r *ToolResult) StreamItem {
	return StreamItem{Result: r}
}
