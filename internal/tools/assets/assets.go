// Package assets provides the asset tool for saving and listing
// managed artifacts (notes, exports, generated documents) owned by an
// actor.
package assets

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

// listLimit caps listings returned to the LLM.
const listLimit = 20

// maxInlineBytes bounds inline asset payloads; anything larger should
// live behind a URI.
const maxInlineBytes = 256 * 1024

// Params are the asset tool's input parameters.
type Params struct {
	// Action is one of "save", "get", "list", "delete".
	Action string `json:"action" jsonschema:"enum=save,enum=get,enum=list,enum=delete,description=What to do with assets"`

	// Name of the asset. Required for save.
	Name string `json:"name,omitempty" jsonschema:"description=Asset name (save)"`

	// Content is the asset body stored inline. Required for save.
	Content string `json:"content,omitempty" jsonschema:"description=Asset content (save)"`

	// MimeType of the content. Defaults to text/plain.
	MimeType string `json:"mime_type,omitempty" jsonschema:"description=MIME type of the content"`

	// ID identifies an asset for get and delete.
	ID string `json:"id,omitempty" jsonschema:"description=Asset id (get/delete)"`
}

// Tool implements agent.ResultTool over an AssetStore.
type Tool struct {
	store storage.AssetStore
}

// New creates the asset tool.
func New(store storage.AssetStore) *Tool {
	return &Tool{store: store}
}

func (t *Tool) Name() string     { return "assets" }
func (t *Tool) Category() string { return "workspace" }

func (t *Tool) Description() string {
	return "Save, retrieve, list, and delete the user's stored artifacts such as notes and generated documents."
}

func (t *Tool) Schema() json.RawMessage {
	return tools.MustSchema(&Params{})
}

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
	case "save":
		return t.save(ctx, actorID, &p)
	case "get":
		return t.get(ctx, &p)
	case "list":
		return t.list(ctx, actorID)
	case "delete":
		return t.delete(ctx, &p)
	default:
		return errResult(fmt.Sprintf("Unknown action %q: use save, get, list, or delete", p.Action)), nil
	}
}

func (t *Tool) save(ctx context.Context, actorID string, p *Params) (*agent.ToolResult, error) {
	if strings.TrimSpace(p.Name) == "" {
		return errResult("A name is required to save an asset"), nil
	}
	if p.Content == "" {
		return errResult("Content is required to save an asset"), nil
	}
	if len(p.Content) > maxInlineBytes {
		return errResult(fmt.Sprintf("Content exceeds the %d byte inline limit", maxInlineBytes)), nil
	}
	mime := p.MimeType
	if mime == "" {
		mime = "text/plain"
	}
	asset := &models.Asset{
		ActorID:  actorID,
		Name:     p.Name,
		MimeType: mime,
		Data:     []byte(p.Content),
	}
	if err := t.store.Create(ctx, asset); err != nil {
		return errResult(fmt.Sprintf("Failed to save asset: %v", err)), nil
	}
	return &agent.ToolResult{
		Content: fmt.Sprintf("Saved asset %q as %s", asset.Name, asset.ID),
		Data:    map[string]any{"asset_id": asset.ID},
	}, nil
}

func (t *Tool) get(ctx context.Context, p *Params) (*agent.ToolResult, error) {
	if p.ID == "" {
		return errResult("An id is required to get an asset"), nil
	}
	asset, err := t.store.Get(ctx, p.ID)
	if err != nil {
		return errResult(fmt.Sprintf("Failed to get asset %s: %v", p.ID, err)), nil
	}
	content := string(asset.Data)
	if content == "" && asset.URI != "" {
		content = fmt.Sprintf("Asset content is external: %s", asset.URI)
	}
	return &agent.ToolResult{
		Content: fmt.Sprintf("%s (%s):\n%s", asset.Name, asset.MimeType, content),
		Data:    map[string]any{"asset_id": asset.ID, "mime_type": asset.MimeType},
	}, nil
}

func (t *Tool) list(ctx context.Context, actorID string) (*agent.ToolResult, error) {
	found, total, err := t.store.List(ctx, actorID, listLimit, 0)
	if err != nil {
		return errResult(fmt.Sprintf("Failed to list assets: %v", err)), nil
	}
	if total == 0 {
		return &agent.ToolResult{Content: "No assets stored."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d assets (showing %d):\n", total, len(found))
	for _, asset := range found {
		fmt.Fprintf(&b, "- [%s] %s (%s, %d bytes)\n", asset.ID, asset.Name, asset.MimeType, len(asset.Data))
	}
	return &agent.ToolResult{
		Content: b.String(),
		Data:    map[string]any{"total": total},
	}, nil
}

func (t *Tool) delete(ctx context.Context, p *Params) (*agent.ToolResult, error) {
	if p.ID == "" {
		return errResult("An id is required to delete an asset"), nil
	}
	if err := t.store.Delete(ctx, p.ID); err != nil {
		return errResult(fmt.Sprintf("Failed to delete asset %s: %v", p.ID, err)), nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("Deleted asset %s", p.ID)}, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
