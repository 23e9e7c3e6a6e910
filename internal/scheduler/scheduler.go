// Package scheduler submits pipeline commands on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
	"github.com/okian/engageboard/pkg/logger"
)

const (
	defaultJobTimeout = time.Minute
	requestIDLayout   = "20060102T1504"
)

// ErrUnknownJob is returned when a job name was never added.
var ErrUnknownJob = errors.New("unknown scheduled job")

// Job is one scheduled task.
type Job func(ctx context.Context) error

// Submitter queues a pipeline command.
type Submitter interface {
	Submit(ctx context.Context, kind model.CommandKind, requestID, source string) (types.CommandStatus, bool, error)
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name     string
	Schedule string
	Next     time.Time
	Prev     time.Time
}

// Scheduler manages periodic tasks.
type Scheduler struct {
	cron       *cron.Cron
	location   *time.Location
	jobTimeout time.Duration
	logger     logger.Logger

	mu   sync.Mutex
	jobs map[string]scheduled
}

type scheduled struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJobTimeout bounds how long one job run may take.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// New creates a scheduler evaluating schedules in timezone. An empty
// timezone means UTC.
func New(timezone string, opts ...Option) (*Scheduler, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	s := &Scheduler{
		location:   loc,
		jobTimeout: defaultJobTimeout,
		logger:     logger.Nop(),
		jobs:       make(map[string]scheduled),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return s, nil
}

// AddJob registers job under name with a standard five-field cron schedule,
// e.g. "0 9 * * *" for 09:00 daily.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(schedule, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = scheduled{id: id, schedule: schedule, job: job}
	s.logger.Info(context.Background(), "job added",
		logger.String("job", name),
		logger.String("schedule", schedule),
		logger.String("timezone", s.location.String()))
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error(ctx, "job failed", logger.String("job", name), logger.Error(err))
		return
	}
	s.logger.Info(ctx, "job completed", logger.String("job", name), logger.Duration("elapsed", time.Since(start)))
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		s.cron.Remove(j.id)
		delete(s.jobs, name)
	}
}

// RunNow executes a registered job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j.job(ctx)
}

// Jobs returns the registered jobs with their next and previous runs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		e := s.cron.Entry(j.id)
		out = append(out, JobInfo{Name: name, Schedule: j.schedule, Next: e.Next, Prev: e.Prev})
	}
	return out
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// SubmitJob returns a job that queues kind on sub. The request id is
// derived from the minute the job fires so a repeated tick is a duplicate.
func SubmitJob(sub Submitter, kind model.CommandKind, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		requestID := fmt.Sprintf("scheduled-%s-%s", kind, now().UTC().Format(requestIDLayout))
		_, _, err := sub.Submit(ctx, kind, requestID, "scheduler")
		return err
	}
}
