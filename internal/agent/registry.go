package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolRegistry is the process-wide tool catalogue. Registration
// happens once at startup before any concurrent lookups begin; the
// mutex exists so misuse fails safe, but registering concurrently
// with lookups is not part of the contract.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registryEntry
}

type registryEntry struct {
	tool Tool

	// schema is the compiled input schema, nil when the declared
	// schema did not compile. Registration trusts the caller; a bad
	// schema disables validation rather than failing registration.
	schema *jsonschema.Schema
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*registryEntry)}
}

// Register adds a tool by name, replacing any existing tool with the
// same name. The tool's input schema is compiled for later validation;
// schema content itself is not validated.
func (r *ToolRegistry) Register(tool Tool) {
	entry := &registryEntry{tool: tool}
	if raw := tool.Schema(); len(raw) > 0 {
		entry.schema = compileSchema(tool.Name(), raw)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = entry
}

// Get returns a tool by name and whether it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return entry.tool, true
}

// List returns all registered tools sorted by name.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, entry := range r.tools {
		tools = append(tools, entry.tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// ListByCategory returns registered tools in the given category,
// sorted by name.
func (r *ToolRegistry) ListByCategory(category string) []Tool {
	all := r.List()
	filtered := make([]Tool, 0, len(all))
	for _, t := range all {
		if t.Category() == category {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// Descriptors returns the serializable catalogue view.
func (r *ToolRegistry) Descriptors() []Descriptor {
	all := r.List()
	descs := make([]Descriptor, 0, len(all))
	for _, t := range all {
		descs = append(descs, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
			Category:    t.Category(),
			Streaming:   IsStreaming(t),
		})
	}
	return descs
}

// ValidateInput checks params against the tool's compiled schema.
// Unknown tools and tools without a usable schema pass through.
func (r *ToolRegistry) ValidateInput(name string, params json.RawMessage) error {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok || entry.schema == nil {
		return nil
	}
	var v any
	if len(params) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(params, &v); err != nil {
		return fmt.Errorf("parameters are not valid JSON: %w", err)
	}
	return entry.schema.Validate(v)
}

func compileSchema(name string, raw json.RawMessage) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	url := "tool://" + name + "/schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil
	}
	return schema
}
