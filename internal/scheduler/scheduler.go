// Package scheduler runs the notification jobs on cron schedules evaluated
// in the display timezone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "ecocal/internal/log"
	"ecocal/internal/metrics"
)

// Job names.
const (
	WeeklyAgenda  = "weekly_agenda"
	DailyReminder = "daily_reminder"
)

var (
	ErrUnknownJob = errors.New("scheduler: unknown job")
	ErrJobRunning = errors.New("scheduler: job already running")
)

// Job is a named unit of work with a 5-field cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type jobEntry struct {
	job       Job
	cronID    cron.EntryID
	isRunning bool
	lastRun   *time.Time
	lastError string
}

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler owns a cron instance and the registered jobs. Different jobs may
// run concurrently; a job never overlaps with itself.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	baseCtx context.Context
}

// New creates a scheduler whose schedules are evaluated in loc. Each run
// gets its own context bounded by timeout (no bound when timeout <= 0).
func New(loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{}))),
		timeout: timeout,
		jobs:    make(map[string]*jobEntry),
		baseCtx: context.Background(),
	}
}

// Register validates the schedule and adds job.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("scheduler: job needs a name and a run func")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}

	name := job.Name
	id, err := s.cron.AddFunc(job.Schedule, func() {
		s.mu.Lock()
		ctx := s.baseCtx
		s.mu.Unlock()
		if err := s.execute(ctx, name); err != nil && !errors.Is(err, ErrJobRunning) {
			appLog.Error("scheduled job failed", err, "job", name)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %q schedule %q: %w", job.Name, job.Schedule, err)
	}

	s.jobs[job.Name] = &jobEntry{job: job, cronID: id}
	appLog.Info("job registered", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Start begins firing jobs. Runs triggered by cron derive their context
// from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.cron.Start()
	appLog.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop stops firing new runs and waits for running ones to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

// RunNow executes the named job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.execute(ctx, name)
}

// Status returns the registered jobs sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, e := range s.jobs {
		st := JobStatus{
			Name:      e.job.Name,
			Schedule:  e.job.Schedule,
			Running:   e.isRunning,
			LastRun:   e.lastRun,
			LastError: e.lastError,
		}
		if next := s.cron.Entry(e.cronID).Next; !next.IsZero() {
			st.NextRun = &next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(parent context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if e.isRunning {
		s.mu.Unlock()
		appLog.Warn("job still running; skipping", "job", name)
		metrics.JobRuns.WithLabelValues(name, "skipped").Inc()
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	e.isRunning = true
	run := e.job.Run
	s.mu.Unlock()

	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	started := time.Now()
	appLog.Info("job started", "job", name, "run_id", runID)
	err := runGuarded(ctx, run)

	s.mu.Lock()
	e.isRunning = false
	e.lastRun = &started
	e.lastError = ""
	if err != nil {
		e.lastError = err.Error()
	}
	s.mu.Unlock()

	metrics.JobRuns.WithLabelValues(name, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("job %s (run %s): %w", name, runID, err)
	}
	appLog.Info("job finished", "job", name, "run_id", runID, "duration", time.Since(started).String())
	return nil
}

// runGuarded turns a panic in run into an error so the job's running flag
// is always cleared.
func runGuarded(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

// cronLogger routes cron's own messages (recovered panics) to appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
