package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/conductor/internal/observability"
)

// EngineEventType tags an engine event.
type EngineEventType string

const (
	EventStepStart         EngineEventType = "step.start"
	EventStepComplete      EngineEventType = "step.complete"
	EventCheckpoint        EngineEventType = "checkpoint"
	EventWorkflowCompleted EngineEventType = "workflow.complete"
	EventWorkflowFailed    EngineEventType = "workflow.failed"
	EventWorkflowCancelled EngineEventType = "workflow.cancelled"
	EventWorkflowPaused    EngineEventType = "workflow.paused"
)

// EngineEvent is one observable state change in a workflow run.
// Checkpoint events carry the checkpoint config and the step data
// accumulated so far, so the consumer can render the decision.
type EngineEvent struct {
	Type       EngineEventType   `json:"type"`
	InstanceID string            `json:"instance_id"`
	StepID     string            `json:"step_id,omitempty"`
	Data       map[string]any    `json:"data,omitempty"`
	Checkpoint *CheckpointConfig `json:"checkpoint,omitempty"`
	Error      string            `json:"error,omitempty"`
	Time       time.Time         `json:"time"`
}

const engineEventBuffer = 64

// Engine executes workflow instances against registered graphs. It is
// the exclusive writer of instance state; per-instance run locks
// serialize Start and Resume so concurrent calls on the same instance
// cannot race, the loser fails its status precondition instead.
//
// OnInstanceUpdated, when set, is called with a deep-copied snapshot
// after every state mutation. That callback is the persistence
// boundary: the engine itself keeps instances only in memory.
type Engine struct {
	registry *Registry
	store    InstanceStore
	logger   *slog.Logger

	// OnInstanceUpdated receives a snapshot after every mutation.
	// Set before the first CreateInstance call.
	OnInstanceUpdated func(*Instance)

	observer StepObserver

	mu        sync.RWMutex
	instances map[string]*Instance
	graphs    map[string]*Graph
	pause     map[string]bool
	cancel    map[string]bool

	lockMu   sync.Mutex
	runLocks map[string]*sync.Mutex
}

// StepObserver receives timing for every executed step. Its method set
// matches the metrics collector so the two wire together directly.
type StepObserver interface {
	RecordWorkflowStep(workflow, nodeType, status string, seconds float64)
}

// SetObserver installs a step observer. Call before Start; a nil
// observer disables step metrics.
func (e *Engine) SetObserver(o StepObserver) {
	e.observer = o
}

// NewEngine creates a workflow engine backed by the given registry and
// snapshot store. A nil store disables snapshotting; a nil logger
// falls back to slog.Default.
func NewEngine(registry *Registry, store InstanceStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:  registry,
		store:     store,
		logger:    logger.With("component", "workflow"),
		instances: make(map[string]*Instance),
		graphs:    make(map[string]*Graph),
		pause:     make(map[string]bool),
		cancel:    make(map[string]bool),
		runLocks:  make(map[string]*sync.Mutex),
	}
}

// CreateInstance builds a new pending instance of a registered
// workflow. The graph pointer is captured at creation, so later
// re-registration under the same id does not affect running instances.
func (e *Engine) CreateInstance(workflowID string, input map[string]any) (*Instance, error) {
	graph, ok := e.registry.Get(workflowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	now := time.Now()
	inst := &Instance{
		ID:            uuid.NewString(),
		WorkflowID:    workflowID,
		Status:        StatusPending,
		CurrentStepID: graph.Entry,
		Context:       NewContext(input, graph.Entry),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	e.mu.Lock()
	e.instances[inst.ID] = inst
	e.graphs[inst.ID] = graph
	e.mu.Unlock()

	e.persist(inst)
	e.logger.Info("workflow instance created", "instance_id", inst.ID, "workflow_id", workflowID)
	return inst, nil
}

// Start begins or continues executing an instance. It fails with
// InvalidStateError unless the instance is Pending or Waiting. The
// returned channel carries engine events and closes when execution
// pauses or terminates; the caller must drain it.
func (e *Engine) Start(ctx context.Context, instanceID string) (<-chan EngineEvent, error) {
	lock := e.runLock(instanceID)
	lock.Lock()

	inst, graph, err := e.lookup(instanceID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	// The precondition check and the transition to Running share one
	// critical section, so a concurrent Cancel either lands before it
	// (Start fails the precondition) or after it (the walk observes
	// the cooperative cancel flag). It can never interleave between
	// the read and the write.
	e.mu.Lock()
	if inst.Status != StatusPending && inst.Status != StatusWaiting {
		status := inst.Status
		e.mu.Unlock()
		lock.Unlock()
		return nil, &InvalidStateError{InstanceID: instanceID, Status: status, Op: "start"}
	}
	inst.Status = StatusRunning
	inst.UpdatedAt = time.Now()
	e.mu.Unlock()
	e.persist(inst)

	events := make(chan EngineEvent, engineEventBuffer)
	go func() {
		defer lock.Unlock()
		defer close(events)
		e.executeUntilCheckpoint(ctx, inst, graph, events)
	}()
	return events, nil
}

// Resume applies a checkpoint decision and continues execution. It
// fails with InvalidStateError unless the instance is Waiting, so a
// second resume after the instance moved past the checkpoint is
// rejected rather than re-applied.
func (e *Engine) Resume(ctx context.Context, instanceID string, action ResumeAction, userData map[string]any) (<-chan EngineEvent, error) {
	lock := e.runLock(instanceID)
	lock.Lock()

	inst, graph, err := e.lookup(instanceID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	// Like Start, the Waiting check and the transition out of Waiting
	// happen in one critical section so a concurrent Cancel cannot
	// slip between them and have its terminal state overwritten.
	e.mu.Lock()
	if inst.Status != StatusWaiting {
		status := inst.Status
		e.mu.Unlock()
		lock.Unlock()
		return nil, &InvalidStateError{InstanceID: instanceID, Status: status, Op: "resume"}
	}

	node := graph.Nodes[inst.CurrentStepID]
	if node == nil || node.Type != NodeCheckpoint {
		status := inst.Status
		e.mu.Unlock()
		lock.Unlock()
		return nil, &InvalidStateError{InstanceID: instanceID, Status: status, Op: "resume"}
	}

	events := make(chan EngineEvent, engineEventBuffer)

	if action == ActionReject {
		inst.Context.State(node.ID).Status = StepCompleted
		e.finishLocked(inst, StatusCancelled)
		e.mu.Unlock()
		e.persist(inst)
		e.logger.Info("workflow instance rejected at checkpoint", "instance_id", inst.ID, "step_id", node.ID)
		go func() {
			defer lock.Unlock()
			defer close(events)
			events <- e.event(EventWorkflowCancelled, inst, node.ID, nil, "")
		}()
		return events, nil
	}

	if action == ActionEdit && len(userData) > 0 {
		inst.Context.UserEdits[node.ID] = mergeInto(inst.Context.UserEdits[node.ID], userData)
		inst.Context.StepData[node.ID] = mergeInto(inst.Context.StepData[node.ID], userData)
	}
	state := inst.Context.State(node.ID)
	state.Status = StepCompleted
	now := time.Now()
	state.CompletedAt = &now
	inst.Status = StatusRunning
	inst.UpdatedAt = now
	e.mu.Unlock()

	e.logger.Info("workflow checkpoint resumed",
		"instance_id", inst.ID, "step_id", node.ID, "action", string(action))

	if node.NextID == "" {
		e.complete(inst)
		go func() {
			defer lock.Unlock()
			defer close(events)
			events <- e.event(EventWorkflowCompleted, inst, node.ID, inst.FinalOutput, "")
		}()
		return events, nil
	}

	e.advanceTo(inst, node.NextID)

	go func() {
		defer lock.Unlock()
		defer close(events)
		e.executeUntilCheckpoint(ctx, inst, graph, events)
	}()
	return events, nil
}

// Pause requests a pause of a running instance. The walk observes the
// request between nodes; Pause returns false outside the Running
// state.
func (e *Engine) Pause(instanceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok || inst.Status != StatusRunning {
		return false
	}
	e.pause[instanceID] = true
	return true
}

// Cancel terminates a non-terminal instance. A running instance is
// cancelled cooperatively between nodes; an idle one transitions
// immediately. Returns false for unknown or already-terminal
// instances.
func (e *Engine) Cancel(instanceID string) bool {
	e.mu.Lock()
	inst, ok := e.instances[instanceID]
	if !ok || inst.Status.Terminal() {
		e.mu.Unlock()
		return false
	}
	if inst.Status == StatusRunning {
		e.cancel[instanceID] = true
		e.mu.Unlock()
		return true
	}

	// An idle instance transitions inside the same critical section as
	// the status check, so a concurrent Start cannot observe the
	// pre-cancel status and keep executing a cancelled instance.
	e.finishLocked(inst, StatusCancelled)
	e.mu.Unlock()
	e.persist(inst)
	e.logger.Info("workflow instance cancelled", "instance_id", instanceID)
	return true
}

// GetInstanceState returns a deep-copied snapshot of an instance.
func (e *Engine) GetInstanceState(instanceID string) (*Instance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	return inst.Clone(), nil
}

// executeUntilCheckpoint walks the graph from the instance's current
// node until it reaches a checkpoint, a terminal node, a failure, or a
// pause/cancel request. Traversal is driven by current-node-id
// indirection, so loop nodes revisiting earlier steps do not recurse.
func (e *Engine) executeUntilCheckpoint(ctx context.Context, inst *Instance, graph *Graph, events chan<- EngineEvent) {
	for {
		if e.takeCancelRequest(inst.ID) || ctx.Err() != nil {
			e.finish(inst, StatusCancelled)
			events <- e.event(EventWorkflowCancelled, inst, inst.CurrentStepID, nil, "")
			return
		}
		if e.takePauseRequest(inst.ID) {
			e.setStatus(inst, StatusPaused)
			events <- e.event(EventWorkflowPaused, inst, inst.CurrentStepID, nil, "")
			return
		}

		node := graph.Nodes[inst.CurrentStepID]
		if node == nil {
			e.fail(inst, fmt.Sprintf("node %q does not exist", inst.CurrentStepID))
			events <- e.event(EventWorkflowFailed, inst, inst.CurrentStepID, nil, inst.Error)
			return
		}

		switch node.Type {
		case NodeExecute:
			if done := e.runExecuteNode(ctx, inst, node, events); done {
				return
			}

		case NodeCheckpoint:
			e.mu.Lock()
			state := inst.Context.State(node.ID)
			state.Status = StepRunning
			now := time.Now()
			state.StartedAt = &now
			inst.Status = StatusWaiting
			e.mu.Unlock()
			e.persist(inst)

			data := make(map[string]any, len(inst.Context.StepData))
			for id, out := range inst.Context.StepData {
				data[id] = out
			}
			events <- e.event(EventCheckpoint, inst, node.ID, data, "")
			e.logger.Info("workflow waiting at checkpoint", "instance_id", inst.ID, "step_id", node.ID)
			return

		case NodeConditional:
			next := e.evalConditional(inst, graph, node)
			if next == "" {
				e.fail(inst, fmt.Sprintf("conditional node %q selected no successor", node.ID))
				events <- e.event(EventWorkflowFailed, inst, node.ID, nil, inst.Error)
				return
			}
			e.advanceTo(inst, next)

		case NodeLoop:
			e.mu.Lock()
			state := inst.Context.State(node.ID)
			state.ExecutionCount++
			e.mu.Unlock()

			if node.Continue(inst.Context) {
				e.advanceTo(inst, node.LoopBodyID)
				continue
			}
			e.mu.Lock()
			state.Status = StepCompleted
			e.mu.Unlock()
			if node.NextID == "" {
				e.complete(inst)
				events <- e.event(EventWorkflowCompleted, inst, node.ID, inst.FinalOutput, "")
				return
			}
			e.advanceTo(inst, node.NextID)

		default:
			e.fail(inst, fmt.Sprintf("node %q has unknown type %q", node.ID, node.Type))
			events <- e.event(EventWorkflowFailed, inst, node.ID, nil, inst.Error)
			return
		}
	}
}

// runExecuteNode runs one execute node. It returns true when the walk
// must stop, either because the step failed or the workflow completed.
func (e *Engine) runExecuteNode(ctx context.Context, inst *Instance, node *Node, events chan<- EngineEvent) bool {
	ctx, span := observability.StartWorkflowStepSpan(ctx, inst.WorkflowID, node.ID)
	defer span.End()
	stepStart := time.Now()

	e.mu.Lock()
	state := inst.Context.State(node.ID)
	state.Status = StepRunning
	state.ExecutionCount++
	now := time.Now()
	state.StartedAt = &now
	state.Error = ""
	e.mu.Unlock()
	e.persist(inst)

	events <- e.event(EventStepStart, inst, node.ID, nil, "")

	output, err := e.callStep(ctx, node, inst.Context)
	if err != nil {
		e.mu.Lock()
		state.Status = StepFailed
		state.Error = err.Error()
		done := time.Now()
		state.CompletedAt = &done
		e.mu.Unlock()

		observability.RecordError(span, err)
		e.observeStep(inst, node, "failed", stepStart)
		e.fail(inst, err.Error())
		events <- e.event(EventWorkflowFailed, inst, node.ID, nil, err.Error())
		e.logger.Error("workflow step failed",
			"instance_id", inst.ID, "step_id", node.ID, "error", err)
		return true
	}

	e.mu.Lock()
	inst.Context.StepData[node.ID] = output
	state.Status = StepCompleted
	state.Output = output
	done := time.Now()
	state.CompletedAt = &done
	e.mu.Unlock()
	e.persist(inst)

	e.observeStep(inst, node, "completed", stepStart)
	events <- e.event(EventStepComplete, inst, node.ID, output, "")

	if node.NextID == "" {
		e.complete(inst)
		events <- e.event(EventWorkflowCompleted, inst, node.ID, inst.FinalOutput, "")
		return true
	}
	e.advanceTo(inst, node.NextID)
	return false
}

func (e *Engine) observeStep(inst *Instance, node *Node, status string, start time.Time) {
	if e.observer == nil {
		return
	}
	e.observer.RecordWorkflowStep(inst.WorkflowID, string(node.Type), status, time.Since(start).Seconds())
}

// callStep invokes a step function, converting a panic into an error
// so it is fatal to the instance, not the process.
func (e *Engine) callStep(ctx context.Context, node *Node, wc *Context) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panic: %v\n%s", r, debug.Stack())
		}
	}()
	return node.Run(ctx, wc)
}

// evalConditional picks the next node: the condition function wins if
// present, otherwise the first outgoing edge whose predicate passes
// (a nil predicate always passes).
func (e *Engine) evalConditional(inst *Instance, graph *Graph, node *Node) string {
	if node.Condition != nil {
		return node.Condition(inst.Context)
	}
	for _, edge := range graph.outgoingEdges(node.ID) {
		if edge.When == nil || edge.When(inst.Context) {
			return edge.To
		}
	}
	return node.NextID
}

func (e *Engine) lookup(instanceID string) (*Instance, *Graph, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	return inst, e.graphs[instanceID], nil
}

func (e *Engine) runLock(instanceID string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.runLocks[instanceID]
	if !ok {
		lock = &sync.Mutex{}
		e.runLocks[instanceID] = lock
	}
	return lock
}

func (e *Engine) takePauseRequest(instanceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause[instanceID] {
		delete(e.pause, instanceID)
		return true
	}
	return false
}

func (e *Engine) takeCancelRequest(instanceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel[instanceID] {
		delete(e.cancel, instanceID)
		return true
	}
	return false
}

func (e *Engine) setStatus(inst *Instance, status InstanceStatus) {
	e.mu.Lock()
	inst.Status = status
	inst.UpdatedAt = time.Now()
	e.mu.Unlock()
	e.persist(inst)
}

func (e *Engine) advanceTo(inst *Instance, nodeID string) {
	e.mu.Lock()
	inst.CurrentStepID = nodeID
	inst.Context.CurrentStepID = nodeID
	inst.UpdatedAt = time.Now()
	e.mu.Unlock()
	e.persist(inst)
}

// complete captures the accumulated step data as the final output.
func (e *Engine) complete(inst *Instance) {
	e.mu.Lock()
	final := make(map[string]any, len(inst.Context.StepData))
	for id, out := range inst.Context.StepData {
		final[id] = out
	}
	inst.FinalOutput = final
	e.mu.Unlock()
	e.finish(inst, StatusCompleted)
	e.logger.Info("workflow instance completed", "instance_id", inst.ID)
}

func (e *Engine) fail(inst *Instance, msg string) {
	e.mu.Lock()
	inst.Error = msg
	e.mu.Unlock()
	e.finish(inst, StatusFailed)
}

func (e *Engine) finish(inst *Instance, status InstanceStatus) {
	e.mu.Lock()
	e.finishLocked(inst, status)
	e.mu.Unlock()
	e.persist(inst)
}

// finishLocked applies a terminal transition. Caller holds e.mu.
func (e *Engine) finishLocked(inst *Instance, status InstanceStatus) {
	inst.Status = status
	now := time.Now()
	inst.UpdatedAt = now
	inst.CompletedAt = &now
	delete(e.pause, inst.ID)
	delete(e.cancel, inst.ID)
}

// persist snapshots the instance into the store and invokes the
// persistence callback. Called after every state mutation.
func (e *Engine) persist(inst *Instance) {
	e.mu.RLock()
	snapshot := inst.Clone()
	e.mu.RUnlock()

	if e.store != nil {
		if err := e.store.Put(snapshot); err != nil {
			e.logger.Warn("instance snapshot failed", "instance_id", inst.ID, "error", err)
		}
	}
	if e.OnInstanceUpdated != nil {
		e.OnInstanceUpdated(snapshot)
	}
}

func (e *Engine) event(typ EngineEventType, inst *Instance, stepID string, data map[string]any, errMsg string) EngineEvent {
	ev := EngineEvent{
		Type:       typ,
		InstanceID: inst.ID,
		StepID:     stepID,
		Data:       data,
		Error:      errMsg,
		Time:       time.Now(),
	}
	if typ == EventCheckpoint {
		if node := e.checkpointConfig(inst); node != nil {
			ev.Checkpoint = node
		}
	}
	return ev
}

func (e *Engine) checkpointConfig(inst *Instance) *CheckpointConfig {
	e.mu.RLock()
	graph := e.graphs[inst.ID]
	current := inst.CurrentStepID
	e.mu.RUnlock()
	if graph == nil {
		return nil
	}
	if node := graph.Nodes[current]; node != nil {
		return node.Checkpoint
	}
	return nil
}
