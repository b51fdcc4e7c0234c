// Package runs executes autonomous agent runs and records their event
// trail. Unlike chat, a run has no interactive consumer: every event
// is persisted as it happens so the trail can be inspected later, and
// the run row tracks lifecycle, outcome, and timing.
package runs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/storage"
	"github.com/haasonsaas/conductor/pkg/models"
)

// StartRequest describes an autonomous run.
type StartRequest struct {
	ActorID string
	Prompt  string

	// System overrides the recorder's default system prompt.
	System string

	// Model overrides the loop's default model.
	Model string

	// MaxIterations caps LLM requests; 0 uses the loop default.
	MaxIterations int
}

// Recorder owns run lifecycles. It is safe for concurrent use.
type Recorder struct {
	loop   *agent.Loop
	store  storage.RunStore
	system string
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*agent.CancelToken
	done   map[string]chan struct{}
}

// NewRecorder creates a run recorder.
func NewRecorder(loop *agent.Loop, store storage.RunStore, system string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		loop:   loop,
		store:  store,
		system: system,
		logger: logger.With("component", "runs"),
		active: make(map[string]*agent.CancelToken),
		done:   make(map[string]chan struct{}),
	}
}

// Start creates the run record and executes it on its own goroutine.
// The returned run is the pending snapshot; callers poll Get or wait
// on Done for the outcome. Execution outlives ctx: only Cancel stops a
// started run.
func (r *Recorder) Start(ctx context.Context, req *StartRequest) (*models.AgentRun, error) {
	run, token, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	go r.execute(context.WithoutCancel(ctx), run, req, token)
	return run, nil
}

// Run executes synchronously and returns the finished run.
func (r *Recorder) Run(ctx context.Context, req *StartRequest) (*models.AgentRun, error) {
	run, token, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	r.execute(ctx, run, req, token)
	return r.store.GetRun(ctx, run.ID)
}

// Cancel trips the run's cancellation token. It reports whether the
// run was active.
func (r *Recorder) Cancel(runID string) bool {
	r.mu.Lock()
	token, ok := r.active[runID]
	r.mu.Unlock()
	if ok {
		token.Cancel()
	}
	return ok
}

// Done returns a channel closed when the run finishes. For unknown or
// already-finished runs the channel is already closed.
func (r *Recorder) Done(runID string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.done[runID]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Get returns the run row.
func (r *Recorder) Get(ctx context.Context, runID string) (*models.AgentRun, error) {
	return r.store.GetRun(ctx, runID)
}

// List returns runs for an actor, newest first. An empty actorID lists
// all runs.
func (r *Recorder) List(ctx context.Context, actorID string, limit, offset int) ([]*models.AgentRun, int, error) {
	return r.store.ListRuns(ctx, actorID, limit, offset)
}

// Events returns the run's persisted event trail in Seq order.
func (r *Recorder) Events(ctx context.Context, runID string) ([]*models.RunEvent, error) {
	return r.store.ListEvents(ctx, runID)
}

func (r *Recorder) prepare(ctx context.Context, req *StartRequest) (*models.AgentRun, *agent.CancelToken, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, nil, fmt.Errorf("runs: prompt is required")
	}

	run := &models.AgentRun{
		ActorID: req.ActorID,
		Prompt:  req.Prompt,
		Status:  models.RunStatusPending,
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("runs: create run: %w", err)
	}

	token := agent.NewCancelToken()
	r.mu.Lock()
	r.active[run.ID] = token
	r.done[run.ID] = make(chan struct{})
	r.mu.Unlock()
	return run, token, nil
}

func (r *Recorder) execute(ctx context.Context, run *models.AgentRun, req *StartRequest, token *agent.CancelToken) {
	defer func() {
		r.mu.Lock()
		delete(r.active, run.ID)
		if ch, ok := r.done[run.ID]; ok {
			close(ch)
			delete(r.done, run.ID)
		}
		r.mu.Unlock()
	}()

	run.Status = models.RunStatusRunning
	run.StartedAt = time.Now()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("mark run running failed", "run_id", run.ID, "error", err)
	}

	sink := func(ev models.AgentEvent) {
		rec := &models.RunEvent{RunID: run.ID, Event: ev}
		if err := r.store.AppendEvent(ctx, rec); err != nil {
			r.logger.Error("persist run event failed",
				"run_id", run.ID, "event_type", ev.Type, "error", err)
		}
	}

	system := req.System
	if system == "" {
		system = r.system
	}

	result := r.loop.Run(ctx, &agent.RunRequest{
		System:        system,
		Messages:      []agent.CompletionMessage{{Role: string(models.RoleUser), Content: req.Prompt}},
		MaxIterations: req.MaxIterations,
		Cancel:        token,
		Model:         req.Model,
		ActorID:       req.ActorID,
	}, sink)

	run.FinalText = result.FinalText
	run.ToolCalls = result.ToolCalls
	run.FinishedAt = time.Now()
	switch {
	case result.Err != nil:
		run.Status = models.RunStatusFailed
		run.Error = result.Err.Error()
	case result.Cancelled:
		run.Status = models.RunStatusCancelled
	default:
		run.Status = models.RunStatusSucceeded
	}
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("finalize run failed", "run_id", run.ID, "error", err)
	}

	r.logger.Info("run finished",
		"run_id", run.ID, "status", run.Status,
		"tool_calls", len(run.ToolCalls),
		"duration", run.FinishedAt.Sub(run.StartedAt))
}
