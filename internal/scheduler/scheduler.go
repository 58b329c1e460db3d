// Package scheduler runs recurring recon jobs defined in the
// configuration. Each job is a cron entry that executes one of the
// recon modules against a fixed target and persists the result.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/recondor/recondor/internal/config"
	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
)

// Runner executes one scheduled job. The scheduler only handles timing;
// what a job does lives behind this interface.
type Runner interface {
	RunJob(ctx context.Context, job config.ScheduledJob) error
}

// Scheduler manages the cron entries for recurring recon jobs.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  *logging.Logger
	entries map[string]cron.EntryID
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler that dispatches jobs to runner.
func New(runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		logger:  logging.WithComponent("scheduler"),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load registers the configured jobs. Duplicate names and invalid cron
// expressions are rejected before anything is scheduled.
func (s *Scheduler) Load(jobs []config.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		job := job
		if _, exists := s.entries[job.Name]; exists {
			return errors.NewConfigFieldError(errors.CodeConfiguration,
				fmt.Sprintf("duplicate scheduler job name %q", job.Name), "jobs", job.Name)
		}

		id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) })
		if err != nil {
			return errors.NewConfigFieldError(errors.CodeConfiguration,
				fmt.Sprintf("invalid cron expression %q for job %q", job.Schedule, job.Name),
				"schedule", job.Schedule)
		}
		s.entries[job.Name] = id
	}
	return nil
}

// Start begins running the scheduled jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.NewScanError(errors.CodeConfiguration, "scheduler is already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop halts the scheduler and cancels any running job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.cancel()
	s.running = false

	s.logger.Info("Scheduler stopped")
}

// JobCount returns the number of registered jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) execute(job config.ScheduledJob) {
	s.logger.Info("Running scheduled job",
		"job", job.Name, "type", job.Type, "target", job.Target)

	if err := s.runner.RunJob(s.ctx, job); err != nil {
		s.logger.Error("Scheduled job failed",
			"job", job.Name, "error", err.Error())
		return
	}

	s.logger.Info("Scheduled job completed", "job", job.Name)
}
