package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the process-wide catalogue of workflow graph templates.
// Graphs are registered at startup and validated up front; a graph
// that fails validation is not added. Lookups after startup are
// read-mostly, the lock is there for the registration phase.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewRegistry creates an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{graphs: make(map[string]*Graph)}
}

// Register validates the graph and adds it under its id. Registering
// an id twice replaces the earlier graph; running instances keep the
// graph pointer they started with.
func (r *Registry) Register(g *Graph) error {
	if g == nil {
		return &ValidationError{Reason: "nil graph"}
	}
	if err := g.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[g.ID] = g
	return nil
}

// Get returns the graph registered under id.
func (r *Registry) Get(id string) (*Graph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[id]
	return g, ok
}

// List returns all registered graphs sorted by id.
func (r *Registry) List() []*Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Graph, 0, len(r.graphs))
	for _, g := range r.graphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GraphDescription is the serializable rendering of a registered
// graph. Condition and step functions are never serialized; edges and
// conditionals only expose a boolean saying whether one is present.
type GraphDescription struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Entry string            `json:"entry"`
	Nodes []NodeDescription `json:"nodes"`
	Edges []EdgeDescription `json:"edges,omitempty"`
}

type NodeDescription struct {
	ID           string            `json:"id"`
	Type         NodeType          `json:"type"`
	NextID       string            `json:"next_id,omitempty"`
	LoopBodyID   string            `json:"loop_body_id,omitempty"`
	Checkpoint   *CheckpointConfig `json:"checkpoint,omitempty"`
	HasCondition bool              `json:"has_condition"`
}

type EdgeDescription struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Label        string `json:"label,omitempty"`
	HasCondition bool   `json:"has_condition"`
}

// Describe renders a registered graph for presentation to external
// clients.
func (r *Registry) Describe(id string) (*GraphDescription, error) {
	g, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	desc := &GraphDescription{
		ID:    g.ID,
		Name:  g.Name,
		Entry: g.Entry,
	}
	for _, node := range g.Nodes {
		desc.Nodes = append(desc.Nodes, NodeDescription{
			ID:           node.ID,
			Type:         node.Type,
			NextID:       node.NextID,
			LoopBodyID:   node.LoopBodyID,
			Checkpoint:   node.Checkpoint,
			HasCondition: node.Condition != nil || node.Continue != nil,
		})
	}
	sort.Slice(desc.Nodes, func(i, j int) bool { return desc.Nodes[i].ID < desc.Nodes[j].ID })
	for _, edge := range g.Edges {
		desc.Edges = append(desc.Edges, EdgeDescription{
			From:         edge.From,
			To:           edge.To,
			Label:        edge.Label,
			HasCondition: edge.When != nil,
		})
	}
	return desc, nil
}
