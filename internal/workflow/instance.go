package workflow

import "time"

// InstanceStatus is the lifecycle state of one workflow run.
type InstanceStatus string

const (
	StatusPending   InstanceStatus = "pending"
	StatusRunning   InstanceStatus = "running"
	StatusWaiting   InstanceStatus = "waiting"
	StatusPaused    InstanceStatus = "paused"
	StatusCompleted InstanceStatus = "completed"
	StatusFailed    InstanceStatus = "failed"
	StatusCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal instances
// never transition again.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Instance is one execution of a registered workflow graph. The engine
// is the only writer; callers read snapshots via GetInstanceState or
// the persistence callback.
type Instance struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id"`
	Status        InstanceStatus `json:"status"`
	CurrentStepID string         `json:"current_step_id"`
	Context       *Context       `json:"context"`
	FinalOutput   map[string]any `json:"final_output,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// Clone deep-copies the instance for snapshotting.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := *i
	out.Context = i.Context.Clone()
	out.FinalOutput = nil
	if i.FinalOutput != nil {
		out.FinalOutput = make(map[string]any, len(i.FinalOutput))
		for id, data := range i.FinalOutput {
			out.FinalOutput[id] = data
		}
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
