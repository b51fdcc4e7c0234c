// Package schedule fires configured prompts as autonomous agent runs
// on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/conductor/internal/config"
	"github.com/haasonsaas/conductor/internal/runs"
	"github.com/haasonsaas/conductor/pkg/models"
)

// cronParser accepts standard 5-field expressions, optional seconds,
// and descriptors like @daily.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Starter launches an autonomous run without waiting for it.
type Starter interface {
	Start(ctx context.Context, req *runs.StartRequest) (*models.AgentRun, error)
}

// Scheduler registers configured jobs on a cron runner. Overlapping
// firings of the same job are allowed; each one is an independent run.
type Scheduler struct {
	starter Starter
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler builds a scheduler. Jobs are registered by Start.
func NewScheduler(starter Starter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		starter: starter,
		logger:  logger.With("component", "schedule"),
	}
}

// Start registers jobs and begins dispatching. Invalid expressions
// fail the whole call so a typo does not silently drop a job.
func (s *Scheduler) Start(jobs []config.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	runner := cron.New(cron.WithParser(cronParser))
	for _, job := range jobs {
		if _, err := runner.AddFunc(job.Cron, func() { s.fire(job) }); err != nil {
			return fmt.Errorf("schedule job %q: %w", job.Name, err)
		}
		s.logger.Info("job registered", "job", job.Name, "cron", job.Cron)
	}

	runner.Start()
	s.cron = runner
	s.running = true
	return nil
}

// Stop shuts down the cron runner and waits for in-flight dispatch
// callbacks. Runs already started keep going; the recorder owns them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.running = false
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) fire(job config.ScheduledJob) {
	run, err := s.starter.Start(context.Background(), &runs.StartRequest{
		ActorID: job.ActorID,
		Prompt:  job.Prompt,
	})
	if err != nil {
		s.logger.Error("job dispatch failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Info("job dispatched", "job", job.Name, "run_id", run.ID)
}

// Validate checks every job expression without starting anything.
// Config loading calls this so bad crontabs fail at boot.
func Validate(jobs []config.ScheduledJob) error {
	for _, job := range jobs {
		if _, err := cronParser.Parse(job.Cron); err != nil {
			return fmt.Errorf("job %q: invalid cron expression %q: %w", job.Name, job.Cron, err)
		}
	}
	return nil
}
