package workflow

import "time"

// StepStatus tracks one node's lifecycle within an instance.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepState is created lazily on a node's first visit and mutated in
// place on every visit after that, never replaced. That keeps
// ExecutionCount intact across loop iterations.
type StepState struct {
	Status         StepStatus     `json:"status"`
	ExecutionCount int            `json:"execution_count"`
	Output         map[string]any `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Context is the per-instance mutable state a workflow run accumulates.
// Input is an immutable snapshot of what started the run; StepData is
// append-only across the run; Variables is free-form scratch space for
// step functions. Only the engine mutates the bookkeeping fields.
type Context struct {
	Input         map[string]any            `json:"input"`
	StepData      map[string]map[string]any `json:"step_data"`
	Variables     map[string]any            `json:"variables"`
	StepStates    map[string]*StepState     `json:"step_states"`
	UserEdits     map[string]map[string]any `json:"user_edits"`
	CurrentStepID string                    `json:"current_step_id"`
}

// NewContext builds a fresh context positioned at the entry node.
func NewContext(input map[string]any, entry string) *Context {
	if input == nil {
		input = map[string]any{}
	}
	return &Context{
		Input:         input,
		StepData:      map[string]map[string]any{},
		Variables:     map[string]any{},
		StepStates:    map[string]*StepState{},
		UserEdits:     map[string]map[string]any{},
		CurrentStepID: entry,
	}
}

// State returns the step state for a node, creating it on first visit.
func (c *Context) State(nodeID string) *StepState {
	if s, ok := c.StepStates[nodeID]; ok {
		return s
	}
	s := &StepState{Status: StepPending}
	c.StepStates[nodeID] = s
	return s
}

// Clone deep-copies the context so snapshots handed to persistence
// callbacks cannot alias live engine state.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := &Context{
		Input:         cloneMap(c.Input),
		StepData:      make(map[string]map[string]any, len(c.StepData)),
		Variables:     cloneMap(c.Variables),
		StepStates:    make(map[string]*StepState, len(c.StepStates)),
		UserEdits:     make(map[string]map[string]any, len(c.UserEdits)),
		CurrentStepID: c.CurrentStepID,
	}
	for id, data := range c.StepData {
		out.StepData[id] = cloneMap(data)
	}
	for id, edits := range c.UserEdits {
		out.UserEdits[id] = cloneMap(edits)
	}
	for id, state := range c.StepStates {
		s := *state
		s.Output = cloneMap(state.Output)
		out.StepStates[id] = &s
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mergeInto copies src entries over dst, allocating dst if needed.
func mergeInto(dst map[string]any, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
