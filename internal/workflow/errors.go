package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound is returned when a workflow id is not registered.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInstanceNotFound is returned when an instance id is unknown.
	ErrInstanceNotFound = errors.New("workflow instance not found")
)

// ValidationError rejects a workflow graph at registration time. The
// graph is not added to the registry.
type ValidationError struct {
	WorkflowID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s: invalid graph: %s", e.WorkflowID, e.Reason)
}

// InvalidStateError rejects an operation because the instance is not
// in the status the operation requires. The instance is unchanged.
type InvalidStateError struct {
	InstanceID string
	Status     InstanceStatus
	Op         string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("instance %s: cannot %s in status %s", e.InstanceID, e.Op, e.Status)
}
