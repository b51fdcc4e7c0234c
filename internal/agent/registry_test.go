package agent

import (
	"encoding/json"
	"strings"
	"testing"
)

type schemaTool struct {
	name     string
	category string
	schema   json.RawMessage
}

func (t schemaTool) Name() string            { return t.name }
func (t schemaTool) Description() string     { return "desc for " + t.name }
func (t schemaTool) Schema() json.RawMessage { return t.schema }
func (t schemaTool) Category() string        { return t.category }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewToolRegistry()
	r.Register(schemaTool{name: "alpha", category: "search"})

	if _, ok := r.Get("alpha"); !ok {
		t.Error("registered tool not found")
	}
	if _, ok := r.Get("beta"); ok {
		t.Error("unregistered tool found")
	}
}

func TestRegistryReplaceKeepsLatest(t *testing.T) {
	r := NewToolRegistry()
	r.Register(schemaTool{name: "dup", category: "v1"})
	r.Register(schemaTool{name: "dup", category: "v2"})

	tool, ok := r.Get("dup")
	if !ok {
		t.Fatal("tool not found")
	}
	if tool.Category() != "v2" {
		t.Errorf("category = %q, want the later registration", tool.Category())
	}
	if got := len(r.List()); got != 1 {
		t.Errorf("list length = %d, want 1", got)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewToolRegistry()
	r.Register(schemaTool{name: "zeta"})
	r.Register(schemaTool{name: "alpha"})
	r.Register(schemaTool{name: "mid"})

	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name())
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestRegistryListByCategory(t *testing.T) {
	r := NewToolRegistry()
	r.Register(schemaTool{name: "a", category: "search"})
	r.Register(schemaTool{name: "b", category: "memory"})
	r.Register(schemaTool{name: "c", category: "search"})

	got := r.ListByCategory("search")
	if len(got) != 2 {
		t.Fatalf("category list length = %d, want 2", len(got))
	}
	for _, tool := range got {
		if tool.Category() != "search" {
			t.Errorf("tool %s has category %s", tool.Name(), tool.Category())
		}
	}
}

func TestRegistryDescriptors(t *testing.T) {
	r := NewToolRegistry()
	r.Register(schemaTool{name: "a", category: "search", schema: json.RawMessage(`{"type":"object"}`)})

	descs := r.Descriptors()
	if len(descs) != 1 {
		t.Fatalf("descriptors length = %d", len(descs))
	}
	d := descs[0]
	if d.Name != "a" || d.Category != "search" || !strings.Contains(d.Description, "a") {
		t.Errorf("descriptor = %+v", d)
	}
}

func TestRegistryValidateInput(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		},
		"required": ["query"]
	}`)
	r := NewToolRegistry()
	r.Register(schemaTool{name: "search", schema: schema})

	if err := r.ValidateInput("search", json.RawMessage(`{"query":"go"}`)); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
	if err := r.ValidateInput("search", json.RawMessage(`{"query":42}`)); err == nil {
		t.Error("wrong-typed input accepted")
	}
	if err := r.ValidateInput("search", json.RawMessage(`{}`)); err == nil {
		t.Error("missing required field accepted")
	}
	// Unknown tools are not the validator's problem.
	if err := r.ValidateInput("nope", json.RawMessage(`{}`)); err != nil {
		t.Errorf("unknown tool rejected: %v", err)
	}
}

func TestRegistryValidateInputEmptyParams(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	r := NewToolRegistry()
	r.Register(schemaTool{name: "noargs", schema: schema})

	if err := r.ValidateInput("noargs", nil); err != nil {
		t.Errorf("nil params rejected: %v", err)
	}
	if err := r.ValidateInput("noargs", json.RawMessage(``)); err != nil {
		t.Errorf("empty params rejected: %v", err)
	}
}

func TestRegistryBadSchemaDisablesValidation(t *testing.T) {
	r := NewToolRegistry()
	r.Register(schemaTool{name: "broken", schema: json.RawMessage(`{"type": 42}`)})

	if _, ok := r.Get("broken"); !ok {
		t.Fatal("registration failed for a bad schema")
	}
	if err := r.ValidateInput("broken", json.RawMessage(`{"anything":true}`)); err != nil {
		t.Errorf("validation not disabled: %v", err)
	}
}
