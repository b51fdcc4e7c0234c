// Package memorytool provides the memory tool: the agent's durable
// notebook. One tool covers store, search, and forget so the LLM deals
// with a single surface, discriminated by the action parameter.
package memorytool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/storage"
	"github.com/haasonsaas/conductor/internal/tools"
	"github.com/haasonsaas/conductor/pkg/models"
)

// searchLimit caps search results returned to the LLM.
const searchLimit = 10

// Params are the memory tool's input parameters.
type Params struct {
	// Action is one of "store", "search", "forget".
	Action string `json:"action" jsonschema:"enum=store,enum=search,enum=forget,description=What to do: store a new memory; search existing ones; forget by id"`

	// Content is the fact to remember. Required for store.
	Content string `json:"content,omitempty" jsonschema:"description=The fact to remember (store)"`

	// Query is the search text. Required for search.
	Query string `json:"query,omitempty" jsonschema:"description=Text to search for (search)"`

	// Tag filters search results and labels stored memories.
	Tag string `json:"tag,omitempty" jsonschema:"description=Optional tag label or filter"`

	// ID identifies the memory to forget.
	ID string `json:"id,omitempty" jsonschema:"description=Memory id to forget (forget)"`
}

// Tool implements agent.ResultTool over a MemoryStore.
type Tool struct {
	store storage.MemoryStore
}

// New creates the memory tool.
func New(store storage.MemoryStore) *Tool {
	return &Tool{store: store}
}

func (t *Tool) Name() string     { return "memory" }
func (t *Tool) Category() string { return "memory" }

func (t *Tool) Description() string {
	return "Remember facts about the user across conversations. Actions: store a fact, search stored facts, forget one by id."
}

func (t *Tool) Schema() json.RawMessage {
	return tools.MustSchema(&Params{})
}

// Execute dispatches on action. Bad input and store failures come back
// as error results, never as raw errors; the loop feeds them to the
// LLM as text.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage, ec *agent.ExecContext) (*agent.ToolResult, error) {
	var p Params
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}

	actorID := ""
	if ec != nil {
		actorID = ec.ActorID
	}

	switch p.Action {
	case "store":
		return t.storeMemory(ctx, actorID, &p)
	case "search":
		return t.searchMemories(ctx, actorID, &p)
	case "forget":
		return t.forgetMemory(ctx, &p)
	default:
		return errResult(fmt.Sprintf("Unknown action %q: use store, search, or forget", p.Action)), nil
	}
}

func (t *Tool) storeMemory(ctx context.Context, actorID string, p *Params) (*agent.ToolResult, error) {
	if strings.TrimSpace(p.Content) == "" {
		return errResult("Content is required to store a memory"), nil
	}
	mem := &models.Memory{
		ActorID: actorID,
		Content: p.Content,
	}
	if p.Tag != "" {
		mem.Tags = []string{p.Tag}
	}
	if err := t.store.Create(ctx, mem); err != nil {
		return errResult(fmt.Sprintf("Failed to store memory: %v", err)), nil
	}
	return &agent.ToolResult{
		Content: fmt.Sprintf("Stored memory %s", mem.ID),
		Data:    map[string]any{"memory_id": mem.ID},
	}, nil
}

func (t *Tool) searchMemories(ctx context.Context, actorID string, p *Params) (*agent.ToolResult, error) {
	if strings.TrimSpace(p.Query) == "" && p.Tag == "" {
		return errResult("A query or tag is required to search memories"), nil
	}
	found, err := t.store.Search(ctx, actorID, p.Query, p.Tag, searchLimit)
	if err != nil {
		return errResult(fmt.Sprintf("Search failed: %v", err)), nil
	}
	if len(found) == 0 {
		return &agent.ToolResult{Content: "No memories matched."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n", len(found))
	for _, mem := range found {
		fmt.Fprintf(&b, "- [%s] %s", mem.ID, mem.Content)
		if len(mem.Tags) > 0 {
			fmt.Fprintf(&b, " (tags: %s)", strings.Join(mem.Tags, ", "))
		}
		b.WriteString("\n")
	}
	return &agent.ToolResult{
		Content: b.String(),
		Data:    map[string]any{"count": len(found)},
	}, nil
}

func (t *Tool) forgetMemory(ctx context.Context, p *Params) (*agent.ToolResult, error) {
	if p.ID == "" {
		return errResult("An id is required to forget a memory"), nil
	}
	if err := t.store.Delete(ctx, p.ID); err != nil {
		return errResult(fmt.Sprintf("Failed to forget memory %s: %v", p.ID, err)), nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("Forgot memory %s", p.ID)}, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
