// Package workflow executes directed graphs of steps with human
// checkpoints. A graph is registered once, validated, and then used as
// an immutable template; each run gets its own instance with a mutable
// context. Execution walks the graph by current-node-id indirection,
// so loop nodes that revisit earlier steps cost no stack depth.
package workflow

import (
	"context"
	"fmt"
)

// NodeType discriminates the four step node kinds.
type NodeType string

const (
	NodeExecute     NodeType = "execute"
	NodeCheckpoint  NodeType = "checkpoint"
	NodeConditional NodeType = "conditional"
	NodeLoop        NodeType = "loop"
)

// StepFunc is the executor attached to an execute node. It receives
// the run's mutable context and returns the node's output, which the
// engine stores under the node id in step data. An error is fatal to
// the instance.
type StepFunc func(ctx context.Context, wc *Context) (map[string]any, error)

// CondFunc picks the next node id for a conditional node. It must be
// synchronous and free of external I/O.
type CondFunc func(wc *Context) string

// PredicateFunc is a loop-continue or edge condition check. Same
// constraints as CondFunc.
type PredicateFunc func(wc *Context) bool

// ResumeAction is a checkpoint decision supplied by an external actor.
type ResumeAction string

const (
	ActionApprove ResumeAction = "approve"
	ActionEdit    ResumeAction = "edit"
	ActionReject  ResumeAction = "reject"
	ActionSkip    ResumeAction = "skip"
)

// CheckpointConfig describes a human checkpoint to whoever has to
// render it: what is being approved, which actions are allowed, and
// which fields an Edit may touch.
type CheckpointConfig struct {
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Actions        []ResumeAction `json:"actions,omitempty"`
	EditableFields []string       `json:"editable_fields,omitempty"`
}

// Node is one step in a workflow graph. Exactly one of the behavior
// fields is meaningful depending on Type: Run for execute nodes,
// Checkpoint for checkpoint nodes, Condition for conditional nodes,
// Continue and LoopBodyID for loop nodes. NextID is the default
// successor; an empty NextID after an execute, conditional, or loop
// step completes the workflow.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`

	Run        StepFunc          `json:"-"`
	Checkpoint *CheckpointConfig `json:"checkpoint,omitempty"`
	Condition  CondFunc          `json:"-"`
	Continue   PredicateFunc     `json:"-"`
	LoopBodyID string            `json:"loop_body_id,omitempty"`

	NextID string `json:"next_id,omitempty"`
}

// Edge connects two nodes. A nil When makes the edge unconditional.
// Conditional nodes without a Condition function pick the first
// outgoing edge whose When passes.
type Edge struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Label string        `json:"label,omitempty"`
	When  PredicateFunc `json:"-"`
}

// Graph is an immutable workflow template. Do not mutate a graph after
// registering it.
type Graph struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Entry string           `json:"entry"`
	Nodes map[string]*Node `json:"nodes"`
	Edges []Edge           `json:"edges,omitempty"`
}

// Validate checks the structural invariants the engine relies on: the
// entry node exists, every edge and successor reference resolves, all
// nodes are reachable from the entry, and at least one terminal node
// (no successor at all) is reachable.
func (g *Graph) Validate() error {
	if g.ID == "" {
		return &ValidationError{WorkflowID: g.ID, Reason: "missing workflow id"}
	}
	if len(g.Nodes) == 0 {
		return &ValidationError{WorkflowID: g.ID, Reason: "graph has no nodes"}
	}
	if _, ok := g.Nodes[g.Entry]; !ok {
		return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("entry node %q does not exist", g.Entry)}
	}

	for id, node := range g.Nodes {
		if node == nil {
			return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("node %q is nil", id)}
		}
		if node.ID != id {
			return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("node %q keyed under %q", node.ID, id)}
		}
		if node.NextID != "" {
			if _, ok := g.Nodes[node.NextID]; !ok {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("node %q: next node %q does not exist", id, node.NextID)}
			}
		}
		switch node.Type {
		case NodeExecute:
			if node.Run == nil {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("execute node %q has no step function", id)}
			}
		case NodeCheckpoint:
			if node.Checkpoint == nil {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("checkpoint node %q has no config", id)}
			}
		case NodeConditional:
			if node.Condition == nil && len(g.outgoingEdges(id)) == 0 {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("conditional node %q has neither a condition function nor outgoing edges", id)}
			}
		case NodeLoop:
			if node.Continue == nil {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("loop node %q has no continue predicate", id)}
			}
			if node.LoopBodyID == "" {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("loop node %q has no body node", id)}
			}
			if _, ok := g.Nodes[node.LoopBodyID]; !ok {
				return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("loop node %q: body node %q does not exist", id, node.LoopBodyID)}
			}
		default:
			return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("node %q has unknown type %q", id, node.Type)}
		}
	}

	for _, edge := range g.Edges {
		if _, ok := g.Nodes[edge.From]; !ok {
			return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("edge references missing node %q", edge.From)}
		}
		if _, ok := g.Nodes[edge.To]; !ok {
			return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("edge references missing node %q", edge.To)}
		}
	}

	reachable := g.reachableFrom(g.Entry)
	for id := range g.Nodes {
		if !reachable[id] {
			return &ValidationError{WorkflowID: g.ID, Reason: fmt.Sprintf("node %q is unreachable from entry", id)}
		}
	}

	terminalReachable := false
	for id := range reachable {
		if len(g.successors(id)) == 0 {
			terminalReachable = true
			break
		}
	}
	if !terminalReachable {
		return &ValidationError{WorkflowID: g.ID, Reason: "no path from entry to a terminal node"}
	}

	return nil
}

// reachableFrom walks successor references breadth-first.
func (g *Graph) reachableFrom(start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(id) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// successors returns every node id a step could hand control to.
// Conditional targets are dynamic at runtime, so edges stand in for
// them during static analysis.
func (g *Graph) successors(id string) []string {
	node := g.Nodes[id]
	if node == nil {
		return nil
	}
	var out []string
	if node.NextID != "" {
		out = append(out, node.NextID)
	}
	if node.Type == NodeLoop && node.LoopBodyID != "" {
		out = append(out, node.LoopBodyID)
	}
	for _, edge := range g.Edges {
		if edge.From == id {
			out = append(out, edge.To)
		}
	}
	return out
}

func (g *Graph) outgoingEdges(id string) []Edge {
	var out []Edge
	for _, edge := range g.Edges {
		if edge.From == id {
			out = append(out, edge)
		}
	}
	return out
}
