package workflow

import (
	"context"
	"errors"
	"testing"
)

func passStep(out map[string]any) StepFunc {
	return func(ctx context.Context, wc *Context) (map[string]any, error) {
		return out, nil
	}
}

func TestValidateAcceptsLinearGraph(t *testing.T) {
	g := &Graph{
		ID:    "linear",
		Name:  "Linear",
		Entry: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Type: NodeExecute, Run: passStep(nil), NextID: "b"},
			"b": {ID: "b", Type: NodeExecute, Run: passStep(nil)},
		},
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}
}

func TestValidateMissingEntry(t *testing.T) {
	g := &Graph{
		ID:    "bad-entry",
		Entry: "nope",
		Nodes: map[string]*Node{
			"a": {ID: "a", Type: NodeExecute, Run: passStep(nil)},
		},
	}
	assertValidationError(t, g.Validate())
}

func TestValidateEdgeToMissingNode(t *testing.T) {
	g := &Graph{
		ID:    "bad-edge",
		Entry: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Type: NodeExecute, Run: passStep(nil)},
		},
		Edges: []Edge{{From: "a", To: "ghost"}},
	}
	assertValidationError(t, g.Validate())
}

func TestValidateUnreachableNode(t *testing.T) {
	g := &Graph{
		ID:    "island",
		Entry: "a",
		Nodes: map[string]*Node{
			"a":      {ID: "a", Type: NodeExecute, Run: passStep(nil)},
			"island": {ID: "island", Type: NodeExecute, Run: passStep(nil)},
		},
	}
	assertValidationError(t, g.Validate())
}

func TestValidateNoTerminalPath(t *testing.T) {
	// a and b point at each other forever.
	g := &Graph{
		ID:    "endless",
		Entry: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Type: NodeExecute, Run: passStep(nil), NextID: "b"},
			"b": {ID: "b", Type: NodeExecute, Run: passStep(nil), NextID: "a"},
		},
	}
	assertValidationError(t, g.Validate())
}

func TestValidateLoopNodeNeedsBody(t *testing.T) {
	g := &Graph{
		ID:    "loopless",
		Entry: "l",
		Nodes: map[string]*Node{
			"l": {ID: "l", Type: NodeLoop, Continue: func(*Context) bool { return false }},
		},
	}
	assertValidationError(t, g.Validate())
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestRegistryRejectsInvalidGraph(t *testing.T) {
	r := NewRegistry()
	g := &Graph{ID: "broken", Entry: "missing", Nodes: map[string]*Node{
		"a": {ID: "a", Type: NodeExecute, Run: passStep(nil)},
	}}
	if err := r.Register(g); err == nil {
		t.Fatal("invalid graph registered")
	}
	if _, ok := r.Get("broken"); ok {
		t.Error("invalid graph present in registry")
	}
}

func TestRegistryDescribeHidesFunctions(t *testing.T) {
	r := NewRegistry()
	g := &Graph{
		ID:    "described",
		Name:  "Described",
		Entry: "check",
		Nodes: map[string]*Node{
			"check": {
				ID:   "check",
				Type: NodeCheckpoint,
				Checkpoint: &CheckpointConfig{
					Title:   "Review",
					Actions: []ResumeAction{ActionApprove, ActionReject},
				},
				NextID: "branch",
			},
			"branch": {
				ID:        "branch",
				Type:      NodeConditional,
				Condition: func(*Context) string { return "done" },
			},
			"done": {ID: "done", Type: NodeExecute, Run: passStep(nil)},
		},
		Edges: []Edge{
			{From: "branch", To: "done", Label: "always", When: func(*Context) bool { return true }},
		},
	}
	if err := r.Register(g); err != nil {
		t.Fatalf("register: %v", err)
	}

	desc, err := r.Describe("described")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if len(desc.Nodes) != 3 {
		t.Fatalf("node count = %d", len(desc.Nodes))
	}
	for _, n := range desc.Nodes {
		switch n.ID {
		case "branch":
			if !n.HasCondition {
				t.Error("conditional node not flagged as having a condition")
			}
		case "check":
			if n.Checkpoint == nil || n.Checkpoint.Title != "Review" {
				t.Errorf("checkpoint config = %+v", n.Checkpoint)
			}
		}
	}
	if len(desc.Edges) != 1 || !desc.Edges[0].HasCondition {
		t.Errorf("edges = %+v, want one flagged edge", desc.Edges)
	}

	if _, err := r.Describe("absent"); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("describe unknown = %v, want ErrWorkflowNotFound", err)
	}
}
